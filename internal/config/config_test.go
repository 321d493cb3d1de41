package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultMediumRiskThreshold, cfg.MediumRiskThreshold)
	assert.Equal(t, DefaultHighRiskThreshold, cfg.HighRiskThreshold)
	assert.Equal(t, DefaultWindowCapacity, cfg.WindowCapacity)
	assert.Equal(t, DefaultLatencyBufferSize, cfg.LatencyBufferSize)
	assert.Equal(t, 50*time.Millisecond, cfg.ScorerTimeout)
	assert.Equal(t, time.Duration(0), cfg.EntityTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEDIUM_RISK_THRESHOLD", "0.4")
	t.Setenv("HIGH_RISK_THRESHOLD", "0.8")
	t.Setenv("WINDOW_CAPACITY", "250")
	t.Setenv("SCORER_TIMEOUT", "75ms")
	t.Setenv("ENTITY_TTL", "12h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.MediumRiskThreshold)
	assert.Equal(t, 0.8, cfg.HighRiskThreshold)
	assert.Equal(t, 250, cfg.WindowCapacity)
	assert.Equal(t, 75*time.Millisecond, cfg.ScorerTimeout)
	assert.Equal(t, 12*time.Hour, cfg.EntityTTL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WINDOW_CAPACITY", "lots")
	t.Setenv("MEDIUM_RISK_THRESHOLD", "half")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultWindowCapacity, cfg.WindowCapacity)
	assert.Equal(t, DefaultMediumRiskThreshold, cfg.MediumRiskThreshold)
}

func TestValidateThresholdOrdering(t *testing.T) {
	t.Setenv("MEDIUM_RISK_THRESHOLD", "0.95")
	t.Setenv("HIGH_RISK_THRESHOLD", "0.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"MEDIUM_RISK_THRESHOLD", "1.5"},
		{"HIGH_RISK_THRESHOLD", "-0.1"},
		{"TARGET_PRECISION", "0"},
		{"TARGET_RECALL", "1.2"},
		{"WINDOW_CAPACITY", "-5"},
		{"LATENCY_BUFFER_SIZE", "0"},
		{"MIN_FEEDBACK_SAMPLES", "-1"},
		{"SCORER_TIMEOUT", "-10ms"},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err, "expected %s=%s to fail validation", tc.key, tc.value)
		})
	}
}

func TestEnvPredicates(t *testing.T) {
	dev := &Config{Env: "development"}
	prod := &Config{Env: "production"}

	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())
	assert.True(t, prod.IsProduction())
	assert.False(t, prod.IsDevelopment())
}
