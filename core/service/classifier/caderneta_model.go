package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/textnorm"

	"github.com/jbrukh/bayesian"
)

var errEmptyCorpus = errors.New("no usable training samples")

// Model is a fitted multinomial naive Bayes over unigram and bigram
// features. A Model is never mutated after Train returns.
type Model struct {
	nb      *bayesian.Classifier
	classes []bayesian.Class
}

func modelClasses() []bayesian.Class {
	classes := make([]bayesian.Class, len(domain.Labels))
	for i, l := range domain.Labels {
		classes[i] = bayesian.Class(l)
	}
	return classes
}

// Features turns text into the token stream the model is trained on.
func Features(text string) []string {
	tokens := textnorm.Normalize(text)
	features := make([]string, 0, 2*len(tokens))
	features = append(features, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		features = append(features, tokens[i]+"_"+tokens[i+1])
	}
	return features
}

// Train fits a fresh model on samples.
func Train(samples []domain.TrainingSample) (*Model, error) {
	classes := modelClasses()
	nb := bayesian.NewClassifier(classes...)
	learned := 0
	for _, s := range samples {
		if _, ok := domain.ParseLabel(string(s.Label)); !ok {
			continue
		}
		features := Features(s.Text)
		if len(features) == 0 {
			continue
		}
		nb.Learn(features, bayesian.Class(s.Label))
		learned++
	}
	if learned == 0 {
		return nil, errEmptyCorpus
	}
	return &Model{nb: nb, classes: classes}, nil
}

// Predict returns the most likely label and a probability per label.
// Probabilities come from a softmax over log scores, which avoids the
// underflow that direct products hit on long messages.
func (m *Model) Predict(text string) (domain.Label, map[domain.Label]float64) {
	logScores, _, _ := m.nb.LogScores(Features(text))

	maxScore := math.Inf(-1)
	for i, s := range logScores {
		if math.IsNaN(s) {
			logScores[i] = math.Inf(-1)
			continue
		}
		if s > maxScore {
			maxScore = s
		}
	}

	scores := make(map[domain.Label]float64, len(m.classes))
	best := domain.LabelOther
	if math.IsInf(maxScore, -1) {
		for _, c := range m.classes {
			scores[domain.Label(c)] = 1 / float64(len(m.classes))
		}
		return best, scores
	}

	var sum float64
	exps := make([]float64, len(logScores))
	for i, s := range logScores {
		exps[i] = math.Exp(s - maxScore)
		sum += exps[i]
	}
	bestP := -1.0
	for i, c := range m.classes {
		p := exps[i] / sum
		scores[domain.Label(c)] = p
		if p > bestP {
			best, bestP = domain.Label(c), p
		}
	}
	return best, scores
}

// Learned is the number of samples the model was fitted on.
func (m *Model) Learned() int {
	return m.nb.Learned()
}

// MarshalBinary encodes the fitted parameters.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.nb.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalModel decodes a snapshot written by MarshalBinary.
func UnmarshalModel(data []byte) (*Model, error) {
	nb, err := bayesian.NewClassifierFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &Model{nb: nb, classes: nb.Classes}, nil
}
