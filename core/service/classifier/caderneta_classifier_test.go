package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSnapshots struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *memSnapshots) Load(ctx context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, false, nil
	}
	return m.data, true, nil
}

func (m *memSnapshots) Save(ctx context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = snapshot
	m.saves++
	return nil
}

type memCorpus struct {
	mu      sync.Mutex
	samples []domain.TrainingSample
}

func (m *memCorpus) Append(ctx context.Context, s domain.TrainingSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

func (m *memCorpus) All(ctx context.Context) ([]domain.TrainingSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TrainingSample(nil), m.samples...), nil
}

func tinySeed() ([]domain.TrainingSample, error) {
	return []domain.TrainingSample{
		{Text: "bom dia", Label: domain.LabelOther},
		{Text: "bom dia pessoal", Label: domain.LabelOther},
		{Text: "boa tarde bom dia", Label: domain.LabelOther},
		{Text: "paguei aluguel", Label: domain.LabelDebit},
		{Text: "vendi bolo", Label: domain.LabelCredit},
	}, nil
}

func newTestClassifier(opts ...Option) (*Classifier, *memSnapshots, *memCorpus) {
	snaps := &memSnapshots{}
	corpus := &memCorpus{}
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return New(snaps, corpus, opts...), snaps, corpus
}

func TestClassifyBootstrapsFromSeed(t *testing.T) {
	c, snaps, _ := newTestClassifier()

	res, err := c.Classify(context.Background(), "paguei 200 de aluguel")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelDebit, res.Label)
	assert.Equal(t, 1, snaps.saves, "bootstrap model must be persisted")
	assert.NotNil(t, c.model.Load())
}

func TestKeywordOverrideOnLowConfidence(t *testing.T) {
	c, _, _ := newTestClassifier(WithThreshold(1.01))

	res, err := c.Classify(context.Background(), "vendi 30 de bolo")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelCredit, res.Label)
	assert.Equal(t, domain.SourceKeyword, res.Source)
	assert.Equal(t, 1.0, res.Confidence())

	res, err = c.Classify(context.Background(), "Entrada 30 caixa")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelDebit, res.Label, "debit table is checked first")

	_, err = c.Classify(context.Background(), "xpto 30")
	assert.True(t, errors.Is(err, ErrNotATransaction))
}

func TestConfidentOtherIsNotATransaction(t *testing.T) {
	c, _, _ := newTestClassifier(WithThreshold(0), WithSeed(tinySeed))

	_, err := c.Classify(context.Background(), "bom dia")
	assert.True(t, errors.Is(err, ErrNotATransaction))
}

func TestSeedCorpusParses(t *testing.T) {
	samples, err := SeedCorpus()
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	labels := map[domain.Label]int{}
	var decimalComma bool
	for _, s := range samples {
		labels[s.Label]++
		if s.Text == "recebi 1000,50 de salário" {
			decimalComma = true
		}
	}
	assert.True(t, decimalComma, "quoted rows keep their comma")
	for _, l := range domain.Labels {
		assert.Positive(t, labels[l], l)
	}
}

func TestBootstrapMergesSeedWithLearnedRows(t *testing.T) {
	c, _, corpus := newTestClassifier(WithSeed(tinySeed))
	ctx := context.Background()
	for _, s := range []domain.TrainingSample{
		{Text: "paguei 50 de mercado", Label: domain.LabelDebit, Confidence: 0.9},
		{Text: "paguei 20 de gas", Label: domain.LabelDebit, Confidence: 0.9},
		{Text: "recebi 300 do cliente", Label: domain.LabelCredit, Confidence: 0.9},
	} {
		require.NoError(t, corpus.Append(ctx, s))
	}

	_, err := c.Classify(ctx, "bom dia")
	assert.True(t, errors.Is(err, ErrNotATransaction), "chatter must stay OTHER")

	m := c.model.Load()
	require.NotNil(t, m)
	tiny, _ := tinySeed()
	assert.Equal(t, len(tiny)+3, m.Learned())
}

func TestBootstrapRunsOnce(t *testing.T) {
	var calls atomic.Int32
	seed := func() ([]domain.TrainingSample, error) {
		calls.Add(1)
		return tinySeed()
	}
	c, _, _ := newTestClassifier(WithSeed(seed), WithThreshold(0))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Classify(context.Background(), "paguei aluguel")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestBootstrapPrefersSnapshot(t *testing.T) {
	samples, _ := tinySeed()
	m, err := Train(samples)
	require.NoError(t, err)
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	failingSeed := func() ([]domain.TrainingSample, error) {
		return nil, errors.New("seed must not be used")
	}
	c, snaps, _ := newTestClassifier(WithSeed(failingSeed), WithThreshold(0))
	snaps.data = data

	res, err := c.Classify(context.Background(), "paguei aluguel")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelDebit, res.Label)
	assert.Zero(t, snaps.saves)
}

func TestModelRoundTrip(t *testing.T) {
	samples, err := SeedCorpus()
	require.NoError(t, err)
	m, err := Train(samples)
	require.NoError(t, err)

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	restored, err := UnmarshalModel(data)
	require.NoError(t, err)

	for _, text := range []string{"paguei 100 de luz", "vendi 40 de bolo", "bom dia"} {
		wantLabel, wantScores := m.Predict(text)
		gotLabel, gotScores := restored.Predict(text)
		assert.Equal(t, wantLabel, gotLabel, text)
		assert.InDeltaMapValues(t, wantScores, gotScores, 1e-9, text)
	}
}

func TestPredictScoresSumToOne(t *testing.T) {
	samples, err := SeedCorpus()
	require.NoError(t, err)
	m, err := Train(samples)
	require.NoError(t, err)

	_, scores := m.Predict("recebi 500 do cliente")
	var sum float64
	for _, p := range scores {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, scores, len(domain.Labels))
}

func TestTrainRejectsEmptyCorpus(t *testing.T) {
	_, err := Train([]domain.TrainingSample{{Text: "de para", Label: domain.LabelDebit}})
	assert.Error(t, err)
}

func TestLearnAppendsOnlyAcceptedRows(t *testing.T) {
	c, _, corpus := newTestClassifier()
	ctx := context.Background()

	require.NoError(t, c.Learn(ctx, "Paguei 10 Pão", domain.ClassificationResult{
		Label: domain.LabelDebit, Scores: map[domain.Label]float64{domain.LabelDebit: 0.9},
	}))
	require.NoError(t, c.Learn(ctx, "talvez", domain.ClassificationResult{
		Label: domain.LabelCredit, Scores: map[domain.Label]float64{domain.LabelCredit: 0.5},
	}))
	require.NoError(t, c.Learn(ctx, "oi", domain.ClassificationResult{
		Label: domain.LabelOther, Scores: map[domain.Label]float64{domain.LabelOther: 0.99},
	}))

	all, _ := corpus.All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "paguei 10 pão", all[0].Text)
	assert.Equal(t, domain.LabelDebit, all[0].Label)
}

func TestReloadSwapsModel(t *testing.T) {
	c, snaps, _ := newTestClassifier()
	require.NoError(t, c.Reload(context.Background()))
	assert.Nil(t, c.model.Load(), "no snapshot leaves the model unset")

	samples, _ := tinySeed()
	m, _ := Train(samples)
	snaps.data, _ = m.MarshalBinary()
	require.NoError(t, c.Reload(context.Background()))
	assert.NotNil(t, c.model.Load())
}

func TestTrainerRun(t *testing.T) {
	snaps := &memSnapshots{}
	corpus := &memCorpus{}
	require.NoError(t, corpus.Append(context.Background(), domain.TrainingSample{Text: "paguei 99 de frete", Label: domain.LabelDebit}))

	_, report, err := NewTrainer(corpus, snaps, 0.2, 7).Run(context.Background())
	require.NoError(t, err)

	seed, err := SeedCorpus()
	require.NoError(t, err)
	assert.Equal(t, len(seed)+1, report.Samples)
	assert.Equal(t, report.Samples, report.TrainSize+report.TestSize)
	assert.Greater(t, report.TestSize, 0)
	assert.Equal(t, 1, snaps.saves)
}

func TestSplitIsDeterministic(t *testing.T) {
	samples, err := SeedCorpus()
	require.NoError(t, err)
	trainA, testA := split(samples, 0.25, 42)
	trainB, testB := split(samples, 0.25, 42)
	assert.Equal(t, testA, testB)
	assert.Equal(t, trainA, trainB)
}
