package config

import (
	"testing"
	"time"

	"github.com/mojzu/mz/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_SECS", "90")
	t.Setenv("TEST_DURATION_GO", "2m")
	t.Setenv("TEST_DURATION_BAD", "soon")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION_SECS", 0))
	assert.Equal(t, 2*time.Minute, getEnvDuration("TEST_DURATION_GO", 0))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_BAD", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_UNSET", time.Second))
}

func TestGetEnvStringSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, getEnvStringSlice("TEST_SLICE", nil))
	assert.Equal(t, []string{"x"}, getEnvStringSlice("TEST_SLICE_UNSET", []string{"x"}))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CSRF_STORE", "memory")
	t.Setenv("PASSWORD_PWNED_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenExpires)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTokenExpires)
	assert.True(t, cfg.Auth.PasswordPwnedEnabled)
	assert.Equal(t, "console", cfg.Notifx.Provider)
	assert.Equal(t, "notify", cfg.Jobx.Queue)
}

func TestLoadRejectsPostgresWithoutURL(t *testing.T) {
	t.Setenv("CSRF_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrInvalid))
}
