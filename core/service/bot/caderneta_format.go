package bot

import (
	"fmt"
	"strings"

	"caderneta_server/core/domain"

	"github.com/shopspring/decimal"
)

// FormatBRL renders d as Brazilian currency: R$ 1.234,56.
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

func confirmationText(tx *domain.Transaction) string {
	return fmt.Sprintf("Entendi! Houve um %s de %s no dia %s na categoria *%s*.",
		tx.Type.Noun(), FormatBRL(tx.Amount), tx.OccurredAt.Format("02/01/2006"), tx.Category)
}

func transactionLine(tx *domain.Transaction) string {
	line := fmt.Sprintf("%s - %s - %s", tx.OccurredAt.Format("02/01"), tx.Category, FormatBRL(tx.Amount))
	if tx.PaymentMethod != domain.PaymentNone {
		line += fmt.Sprintf(" (%s)", tx.PaymentMethod)
	}
	return line
}

func listText(title string, iv domain.Interval, txs []*domain.Transaction, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s em %s*\n\n", title, iv.Label())
	for _, tx := range txs {
		prefix := "💸"
		if tx.Type == domain.TransactionCredit {
			prefix = "💰"
		}
		fmt.Fprintf(&b, "%s %s\n", prefix, transactionLine(tx))
	}
	fmt.Fprintf(&b, "\n*Total:* %s", FormatBRL(total))
	return b.String()
}

func balanceText(iv domain.Interval, totals domain.Totals) string {
	return fmt.Sprintf("*Resumo de %s*\n\n💰 Recebimentos: %s\n💸 Pagamentos: %s\n\n*Lucro:* %s",
		iv.Label(), FormatBRL(totals.Credits), FormatBRL(totals.Debits), FormatBRL(totals.Balance()))
}
