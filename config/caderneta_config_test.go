package config

import (
	"testing"
	"time"

	"caderneta_server/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLASSIFIER_THRESHOLD", "")
	t.Setenv("ONBOARDING_TTL_SEC", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.ClassifierThreshold)
	assert.Equal(t, 900*time.Second, cfg.OnboardingTTL)
	assert.Equal(t, 5, cfg.OnboardingCodeAttempts)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone.String())
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("CLASSIFIER_THRESHOLD", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeConfigError))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ONBOARDING_CODE_ATTEMPTS", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.OnboardingCodeAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadWorkerSettings(t *testing.T) {
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("WORKER_ID", "worker-a")
	t.Setenv("MODEL_RELOAD_INTERVAL_SEC", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, "worker-a", cfg.WorkerID)
	assert.Equal(t, time.Minute, cfg.ModelReloadInterval)
	assert.Equal(t, "caderneta-workers", cfg.StreamGroup)

	t.Setenv("WORKER_COUNT", "0")
	_, err = Load()
	assert.Error(t, err)
}
