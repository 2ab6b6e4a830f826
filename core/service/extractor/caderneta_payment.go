package extractor

import (
	"strings"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/textnorm"
)

type methodPhrase struct {
	words  []string
	method domain.PaymentMethod
}

// longer phrases first so "cartao de credito" beats "credito"
var methodPhrases = []methodPhrase{
	{[]string{"cartao", "de", "credito"}, domain.PaymentCredit},
	{[]string{"cartao", "de", "debito"}, domain.PaymentDebit},
	{[]string{"cartao", "credito"}, domain.PaymentCredit},
	{[]string{"cartao", "debito"}, domain.PaymentDebit},
	{[]string{"pix"}, domain.PaymentPix},
	{[]string{"credito"}, domain.PaymentCredit},
	{[]string{"debito"}, domain.PaymentDebit},
	{[]string{"dinheiro"}, domain.PaymentCash},
	{[]string{"especie"}, domain.PaymentCash},
	{[]string{"cash"}, domain.PaymentCash},
	{[]string{"boleto"}, domain.PaymentSlip},
	{[]string{"transferencia"}, domain.PaymentTransfer},
	{[]string{"ted"}, domain.PaymentTransfer},
	{[]string{"doc"}, domain.PaymentTransfer},
}

// extractPaymentMethod removes the earliest payment-method phrase.
func extractPaymentMethod(s string) (domain.PaymentMethod, string) {
	fields := strings.Fields(s)
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = strings.Trim(textnorm.Fold(f), ".,;:!?")
	}
	for i := range folded {
		for _, p := range methodPhrases {
			if matchesAt(folded, i, p.words) {
				return p.method, removeTokens(fields, i, len(p.words))
			}
		}
	}
	return domain.PaymentNone, s
}

func isPaymentWord(folded string) bool {
	for _, p := range methodPhrases {
		if len(p.words) == 1 && p.words[0] == folded {
			return true
		}
	}
	return false
}

func matchesAt(tokens []string, at int, words []string) bool {
	if at+len(words) > len(tokens) {
		return false
	}
	for j, w := range words {
		if tokens[at+j] != w {
			return false
		}
	}
	return true
}
