package domain

// Trigger verbs, already folded (lower-case, no accents).
var (
	DebitTriggers = []string{
		"paguei", "pagamento", "p", "pp", "gastei", "compra", "pag", "comprei",
		"gasto", "gastos", "pague", "pagou", "pago", "pguei", "mercado", "compras",
		"pagar", "entrada", "pagarei", "compre", "pagui", "perdi",
	}
	CreditTriggers = []string{
		"recebi", "vendi", "v", "recebimento", "r", "venda", "vendo", "rec",
		"entrada", "vendido", "ganhei", "vendeu", "recebido", "c", "recebe",
		"vende", "vendas", "entrou", "reci",
	}
)

var triggerIndex = buildTriggerIndex()

func buildTriggerIndex() map[string]TransactionType {
	idx := make(map[string]TransactionType, len(DebitTriggers)+len(CreditTriggers))
	// debit list wins on overlap ("entrada")
	for _, w := range CreditTriggers {
		idx[w] = TransactionCredit
	}
	for _, w := range DebitTriggers {
		idx[w] = TransactionDebit
	}
	return idx
}

// TriggerType reports which transaction type a folded token triggers.
func TriggerType(token string) (TransactionType, bool) {
	t, ok := triggerIndex[token]
	return t, ok
}
