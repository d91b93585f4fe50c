package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("requires jwt secret", func(t *testing.T) {
		t.Setenv("SUPABASE_JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("SUPABASE_JWT_SECRET", "secret")
		t.Setenv("RATE_LIMIT_BACKEND", "")
		t.Setenv("UPLOAD_MAX_MB", "")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxBytes)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, "sb-access-token", cfg.Supabase.SessionCookieName)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("SUPABASE_JWT_SECRET", "secret")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("SENTRY_ENVIRONMENT", "")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Server.IsProduction())
		assert.Equal(t, "production", cfg.Sentry.Environment)
	})

	t.Run("rejects unknown rate limit backend", func(t *testing.T) {
		t.Setenv("SUPABASE_JWT_SECRET", "secret")
		t.Setenv("RATE_LIMIT_BACKEND", "memcached")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=require", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestSplitTrim(t *testing.T) {
	assert.Nil(t, SplitTrim("", ","))
	assert.Equal(t, []string{"a", "b"}, SplitTrim(" a, ,b ,", ","))
}
