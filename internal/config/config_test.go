package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 120*time.Second, cfg.Sweep.Interval)

	// Cache and messaging are off by default and fall back to noop drivers.
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)

	// The reader falls back to the writer DSN when not set.
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
}

func TestNewRejectsUnsupportedAlgorithm(t *testing.T) {
	t.Setenv("AUTH_ALGORITHM", "RS256")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported token algorithm")
}

func TestNewRejectsBcryptCostOutOfRange(t *testing.T) {
	for _, cost := range []string{"3", "32", "-1"} {
		t.Run(cost, func(t *testing.T) {
			t.Setenv("AUTH_BCRYPT_COST", cost)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bcrypt cost out of range")
		})
	}
}

func TestNewRejectsEmptySecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_SECRET")
}

func TestNewSweepOverrides(t *testing.T) {
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := New()
	require.NoError(t, err)
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
}
