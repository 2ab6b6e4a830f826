package extractor

import (
	"strings"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/textnorm"
)

// Trigger words that are verb forms. Noun triggers such as "mercado" or
// "compras" stay, since they describe what the money was for.
var verbTriggers = map[string]struct{}{
	"paguei": {}, "gastei": {}, "comprei": {}, "pague": {}, "pagou": {}, "pago": {},
	"pguei": {}, "pagar": {}, "pagarei": {}, "compre": {}, "pagui": {}, "perdi": {},
	"recebi": {}, "vendi": {}, "vendo": {}, "vendido": {}, "ganhei": {}, "vendeu": {},
	"recebido": {}, "recebe": {}, "vende": {}, "entrou": {}, "reci": {},
}

// Abbreviated triggers only count as the leading word.
var shorthandTriggers = map[string]struct{}{
	"p": {}, "pp": {}, "pag": {}, "v": {}, "r": {}, "rec": {}, "c": {},
}

func isDroppableTrigger(folded string) bool {
	if _, ok := verbTriggers[folded]; ok {
		return true
	}
	_, ok := shorthandTriggers[folded]
	return ok
}

// extractCategory trims stopwords at both ends, drops leftover payment,
// currency and verb words, and upper-cases the rest.
func extractCategory(s string) string {
	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		word := strings.Trim(f, ".,;:!?")
		folded := textnorm.Fold(word)
		if word == "" || isPaymentWord(folded) || textnorm.IsCurrencyWord(folded) {
			continue
		}
		if _, ok := verbTriggers[folded]; ok {
			continue
		}
		kept = append(kept, word)
	}

	start, end := 0, len(kept)
	for start < end && textnorm.IsStopword(textnorm.Fold(kept[start])) {
		start++
	}
	for end > start && textnorm.IsStopword(textnorm.Fold(kept[end-1])) {
		end--
	}
	if start == end {
		return domain.DefaultCategory
	}
	return textnorm.Upper(strings.Join(kept[start:end], " "))
}
