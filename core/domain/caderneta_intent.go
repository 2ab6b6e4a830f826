package domain

// Label is a classifier output class.
type Label string

const (
	LabelDebit  Label = "DEBIT"
	LabelCredit Label = "CREDIT"
	LabelOther  Label = "OTHER"
)

// Labels lists every class the classifier knows, in model order.
var Labels = []Label{LabelDebit, LabelCredit, LabelOther}

func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case LabelDebit, LabelCredit, LabelOther:
		return Label(s), true
	}
	return "", false
}

// TransactionType maps a transactional label to its ledger type.
func (l Label) TransactionType() (TransactionType, bool) {
	switch l {
	case LabelDebit:
		return TransactionDebit, true
	case LabelCredit:
		return TransactionCredit, true
	}
	return "", false
}

// ClassificationSource tells which stage produced a label.
type ClassificationSource string

const (
	SourceModel   ClassificationSource = "model"
	SourceKeyword ClassificationSource = "keyword"
)

// ClassificationResult is a label with its per-class scores.
type ClassificationResult struct {
	Label  Label
	Scores map[Label]float64
	Source ClassificationSource
}

// Confidence is the score of the chosen label.
func (r ClassificationResult) Confidence() float64 {
	return r.Scores[r.Label]
}

// TrainingSample is one labeled row of the training corpus.
type TrainingSample struct {
	Text       string  `json:"text" bson:"text"`
	Label      Label   `json:"label" bson:"label"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}
