package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("WS_ALLOWED_ORIGINS", "")
	t.Setenv("CONVERSATION_HISTORY_LIMIT", "")
	t.Setenv("JWT_TTL_HOURS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"*"}, cfg.WSAllowedOrigins)
	assert.Equal(t, 50, cfg.ConversationHistoryLimit)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CONVERSATION_HISTORY_LIMIT", "not-a-number")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WSAllowedOrigins)
	assert.Equal(t, 50, cfg.ConversationHistoryLimit)
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"dev default allowed", "development", DevJWTSecret, false},
		{"production default refused", "production", DevJWTSecret, true},
		{"production empty refused", "production", "", true},
		{"production custom allowed", "production", "a-real-secret", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Env: tt.env, JWTSecret: tt.secret}).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadUsesDevSecretByDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV", "staging")

	cfg := Load()
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.Error(t, cfg.Validate())
}

func TestInitDB(t *testing.T) {
	t.Run("sqlite in memory", func(t *testing.T) {
		cfg := &Config{DBDriver: "sqlite", SQLitePath: ":memory:"}
		db, err := InitDB(cfg, zap.NewNop())
		require.NoError(t, err)
		defer db.CloseDB()
		assert.NotNil(t, db.Gorm)
	})

	t.Run("postgres requires a connection string", func(t *testing.T) {
		_, err := InitDB(&Config{DBDriver: "postgres"}, zap.NewNop())
		assert.ErrorContains(t, err, "POSTGRES_CONN_STR")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := InitDB(&Config{DBDriver: "oracle"}, zap.NewNop())
		assert.ErrorContains(t, err, "unsupported DB_DRIVER")
	})
}
