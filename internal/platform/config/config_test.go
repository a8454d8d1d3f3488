package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	require.Equal(t, "http://localhost:3333/api/v1", cfg.Client.BaseURL)
	require.Equal(t, "/auth/refresh", cfg.Client.RefreshPath)
	require.Equal(t, 10*time.Second, cfg.Client.RefreshTimeout)
	require.Equal(t, 30*time.Second, cfg.Client.HealthInterval)
	require.Equal(t, "auth-storage", cfg.Session.StorageKey)
	require.Equal(t, "file", cfg.Session.Backend)
	require.Equal(t, "memory", cfg.Auth.TokenStore)
	require.Equal(t, 15*time.Minute, cfg.Auth.VerificationTTL)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_BASE_URL=http://from-file/api\nSESSION_BACKEND=memory\n"), 0o600))

	t.Setenv("API_REFRESH_TIMEOUT", "3s")
	// godotenv.Load sets process variables; unset them so other tests see defaults.
	t.Cleanup(func() {
		os.Unsetenv("API_BASE_URL")
		os.Unsetenv("SESSION_BACKEND")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, "http://from-file/api", cfg.Client.BaseURL)
	require.Equal(t, "memory", cfg.Session.Backend)
	require.Equal(t, 3*time.Second, cfg.Client.RefreshTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"SESSION_BACKEND": "s3"}},
		{name: "postgres without host", env: map[string]string{"SESSION_BACKEND": "postgres"}},
		{name: "bad duration", env: map[string]string{"API_TIMEOUT": "soon"}},
		{name: "unknown token store", env: map[string]string{"AUTH_TOKEN_STORE": "redis"}},
		{name: "empty storage key", env: map[string]string{"SESSION_STORAGE_KEY": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missing)
			require.Error(t, err)
		})
	}
}
