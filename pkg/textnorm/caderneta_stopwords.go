package textnorm

var stopwords = toSet(
	"a", "ao", "aos", "aquela", "aquelas", "aquele", "aqueles", "aquilo", "as", "ate",
	"com", "como", "da", "das", "de", "dela", "delas", "dele", "deles", "depois",
	"do", "dos", "e", "ela", "elas", "ele", "eles", "em", "entre", "era",
	"essa", "essas", "esse", "esses", "esta", "estas", "este", "estes", "eu", "foi",
	"isso", "isto", "ja", "lhe", "mais", "mas", "me", "meu", "meus", "minha",
	"minhas", "muito", "na", "nas", "nem", "no", "nos", "nossa", "nosso", "num",
	"numa", "o", "os", "ou", "para", "pela", "pelas", "pelo", "pelos", "por",
	"pra", "pras", "pro", "pros", "qual", "que", "quem", "se", "sem", "seu",
	"seus", "so", "sua", "suas", "tambem", "te", "um", "uma", "umas", "uns",
	"voce", "voces", "hoje", "ontem",
)

// currency words carry no category meaning
var currencyWords = toSet("r$", "rs", "reais", "real", "conto", "contos", "pila", "pilas")

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopword expects a folded token.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// IsCurrencyWord expects a folded token.
func IsCurrencyWord(tok string) bool {
	_, ok := currencyWords[tok]
	return ok
}
