package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManagerForTest(t *testing.T) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	m, err := NewManager()
	require.NoError(t, err)
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := newManagerForTest(t)
	cfg := m.GetConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/priority_model.json", cfg.Model.Path)
	assert.Equal(t, 1000, cfg.Synthesis.Samples)
	assert.Equal(t, int64(42), cfg.Synthesis.Seed)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Historical.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv("TRIAGE_SERVER_PORT", "9999")
	t.Setenv("TRIAGE_LOGGING_LEVEL", "debug")

	m := newManagerForTest(t)
	cfg := m.GetConfig()

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manager)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(m *Manager) {},
		},
		{
			name:    "bad port",
			mutate:  func(m *Manager) { m.config.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "empty model path",
			mutate:  func(m *Manager) { m.config.Model.Path = "" },
			wantErr: "model path is required",
		},
		{
			name:    "zero samples",
			mutate:  func(m *Manager) { m.config.Synthesis.Samples = 0 },
			wantErr: "sample count must be positive",
		},
		{
			name:    "unknown history backend",
			mutate:  func(m *Manager) { m.config.History.Backend = "oracle" },
			wantErr: "unknown history backend",
		},
		{
			name: "postgres backend requires host",
			mutate: func(m *Manager) {
				m.config.History.Backend = "postgres"
				m.config.Database.Host = ""
			},
			wantErr: "database host is required",
		},
		{
			name: "historical enabled requires url",
			mutate: func(m *Manager) {
				m.config.Historical.Enabled = true
				m.config.Historical.BaseURL = ""
			},
			wantErr: "historical base URL is required",
		},
		{
			name:    "bad log level",
			mutate:  func(m *Manager) { m.config.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManagerForTest(t)
			tt.mutate(m)

			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetDatabaseConnectionString(t *testing.T) {
	m := newManagerForTest(t)
	m.config.Database.Host = "db.internal"
	m.config.Database.Password = "secret"

	got := m.GetDatabaseConnectionString()
	assert.Equal(t, "host=db.internal port=5432 dbname=triage_engine user=postgres password=secret sslmode=disable", got)
}
