package bootstrap

import (
	"context"
	"time"

	"caderneta_server/config"
	"caderneta_server/core/service/classifier"
	"caderneta_server/internal/stream"
	"caderneta_server/pkg/logger"
)

// RunRetrain refits the classifier from the full corpus, saves the snapshot
// and asks running workers to reload it.
func RunRetrain(ctx context.Context, cfg *config.Config) error {
	deps, cleanup, err := NewDependencies(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	trainer := classifier.NewTrainer(deps.Corpus, deps.Snapshots, cfg.RetrainHoldout, uint64(start.UnixNano()))
	model, report, err := trainer.Run(ctx)
	if err != nil {
		return err
	}
	logger.WithDuration(time.Since(start)).WithFields(map[string]any{
		"samples":  report.Samples,
		"train":    report.TrainSize,
		"test":     report.TestSize,
		"accuracy": report.Accuracy,
		"learned":  model.Learned(),
	}).Info("classifier retrained")

	if deps.Stream == nil {
		logger.Warn("no stream configured, workers pick the model up on their next periodic reload")
		return nil
	}
	id, err := stream.NewProducer(deps.Stream).PublishReload(ctx)
	if err != nil {
		return err
	}
	logger.Info("reload job %s published", id)
	return nil
}
