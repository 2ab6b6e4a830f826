package command

import (
	"fmt"
	"strings"
)

const (
	helpHeader = "Por aqui consigo te ajudar com os seguintes comandos:\n\n"
	helpFooter = "\n\nAlém disso, você pode registrar suas receitas e despesas de forma simples.\nEx: *paguei 1350 aluguel* ou *vendi 2300 de buffet*"
)

// HelpText lists every visible command with its aliases.
func HelpText(r *Registry) string {
	var b strings.Builder
	b.WriteString(helpHeader)
	for _, d := range r.Visible() {
		fmt.Fprintf(&b, "*%s*: %s", d.Name(), d.Description)
		if len(d.Aliases) > 0 {
			fmt.Fprintf(&b, " (Também entendo: *%s*)", strings.Join(d.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpFooter)
	return b.String()
}

// UnknownWordReply answers a single word that matched no command.
func UnknownWordReply(word string) string {
	return fmt.Sprintf("Comando %s não existe\n\nDigite *ajuda* e veja os comandos disponíveis.", word)
}
