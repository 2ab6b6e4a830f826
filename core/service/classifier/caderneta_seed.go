package classifier

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"caderneta_server/core/domain"
)

//go:embed seed_corpus.csv
var seedCSV string

// SeedCorpus is the labeled starter set used until real traffic fills the
// training corpus.
func SeedCorpus() ([]domain.TrainingSample, error) {
	r := csv.NewReader(strings.NewReader(seedCSV))
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse seed corpus: %w", err)
	}
	samples := make([]domain.TrainingSample, 0, len(rows))
	for i, row := range rows {
		if i == 0 && row[0] == "text" {
			continue
		}
		label, ok := domain.ParseLabel(row[1])
		if !ok {
			return nil, fmt.Errorf("seed corpus line %d: unknown label %q", i+1, row[1])
		}
		samples = append(samples, domain.TrainingSample{Text: row[0], Label: label, Confidence: 1})
	}
	return samples, nil
}
