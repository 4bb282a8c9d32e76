package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/tokens"
)

const goodSecret = "q8Vt2LmZ0rX9cP4nWb7Ks1Hd6Jf3Ga5E-test"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SECRET_KEY", goodSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "sqlite:galenos.db", cfg.DatabaseURL)
	assert.Equal(t, "HS256", cfg.Algorithm)
	assert.Equal(t, 30, cfg.AccessTokenExpireMinutes)
	assert.Equal(t, 7, cfg.RefreshTokenExpireDays)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 5, cfg.RateLimitAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "auth_events", cfg.KafkaTopic)
	assert.Empty(t, cfg.Brokers())
	assert.Empty(t, cfg.Proxies())
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", goodSecret)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("REFRESH_TOKEN_EXPIRE_DAYS", "2")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ALGORITHM", "HS512")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5/32")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5/32"}, cfg.Proxies())

	s := cfg.TokenSettings()
	assert.Equal(t, 15*time.Minute, s.AccessTTL)
	assert.Equal(t, 48*time.Hour, s.RefreshTTL)
	assert.Equal(t, "HS512", s.Algorithm)
}

func TestValidate_RejectsInsecureSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "missing", secret: ""},
		{name: "short", secret: "hunter2"},
		{name: "placeholder", secret: "your-secret-key-change-in-production"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SecretKey: tt.secret, AccessTokenExpireMinutes: 30, RateLimitAttempts: 5, RateLimitWindow: time.Minute}
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrConfig)
			assert.ErrorIs(t, err, tokens.ErrInsecureSecret)
		})
	}
}

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a"}, CSV(" a "))
	assert.Equal(t, []string{"a", "b"}, CSV("a,,b"))
}

func TestOpenDB_SqliteMemory(t *testing.T) {
	_, err := OpenDB(context.Background(), "")
	assert.ErrorIs(t, err, ErrConfig)

	db, err := OpenDB(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&models.User{Username: "u", Email: "u@example.com", Role: models.RoleDoctor, IsActive: true}).Error)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
