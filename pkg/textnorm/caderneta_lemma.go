package textnorm

import "strings"

// suffix rules, longest first; minStem guards short words
var suffixRules = []struct {
	suffix  string
	minStem int
}{
	{"aremos", 3}, {"eremos", 3}, {"iremos", 3},
	{"ariam", 3}, {"eriam", 3}, {"avam", 3},
	{"ando", 3}, {"endo", 3}, {"indo", 3},
	{"aram", 3}, {"eram", 3}, {"iram", 3},
	{"amos", 3}, {"emos", 3}, {"imos", 3},
	{"arei", 3}, {"erei", 3}, {"irei", 3},
	{"ados", 3}, {"idos", 3}, {"adas", 3}, {"idas", 3},
	{"ado", 3}, {"ido", 3}, {"ada", 3}, {"ida", 3},
	{"ava", 3}, {"ou", 3}, {"eu", 3}, {"iu", 3},
	{"ei", 3}, {"ar", 3}, {"er", 3}, {"ir", 3},
	{"es", 4}, {"s", 4},
}

// irregular forms seen often in bookkeeping chat
var lemmaExceptions = map[string]string{
	"paguei": "pag", "pago": "pag", "pagou": "pag", "pague": "pag", "pagui": "pag", "pguei": "pag",
	"pagamento": "pag", "pagamentos": "pag", "pagar": "pag", "pagarei": "pag",
	"recebi": "receb", "reci": "receb", "recebimento": "receb", "recebimentos": "receb",
	"fiz": "faz", "fez": "faz", "tive": "ter", "teve": "ter",
}

// Lemmatize reduces a folded token to a rough stem.
func Lemmatize(tok string) string {
	if l, ok := lemmaExceptions[tok]; ok {
		return l
	}
	for _, rule := range suffixRules {
		if strings.HasSuffix(tok, rule.suffix) && len(tok)-len(rule.suffix) >= rule.minStem {
			return tok[:len(tok)-len(rule.suffix)]
		}
	}
	return tok
}
