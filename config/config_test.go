package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := ReadConfig("config-does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, int64(8080), cfg.Server.Port)
	assert.Equal(t, "lru", cfg.Cache.Kind)
	assert.Equal(t, 24*time.Hour, cfg.Coordinator.DefaultTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Coordinator.ExecutionLease)
	assert.Equal(t, uint(10), cfg.Coordinator.MaxConflictRetries)
	assert.False(t, cfg.Coordinator.ExecuteAtThreshold)
}

func TestReadConfigEnvOverride(t *testing.T) {
	t.Setenv("MULTISIGNER_SERVER_PORT", "9090")
	t.Setenv("MULTISIGNER_COORDINATOR_EXECUTE_AT_THRESHOLD", "true")
	t.Setenv("MULTISIGNER_COORDINATOR_SWEEP_SCHEDULE", "@every 30s")

	cfg, err := ReadConfig("config-does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, int64(9090), cfg.Server.Port)
	assert.True(t, cfg.Coordinator.ExecuteAtThreshold)
	assert.Equal(t, "@every 30s", cfg.Coordinator.SweepSchedule)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 7070
cache:
  kind: none
coordinator:
  default_timeout: 1h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "multisigner-test.yaml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := ReadConfig("multisigner-test")
	require.NoError(t, err)
	assert.Equal(t, int64(7070), cfg.Server.Port)
	assert.Equal(t, "none", cfg.Cache.Kind)
	assert.Equal(t, time.Hour, cfg.Coordinator.DefaultTimeout)
}

func TestValidate(t *testing.T) {
	cfg, err := ReadConfig("config-does-not-exist")
	require.NoError(t, err)

	cfg.Cache.Kind = "memcached"
	assert.Error(t, cfg.Validate())

	cfg.Cache.Kind = "none"
	cfg.Coordinator.MaxConflictRetries = 0
	assert.Error(t, cfg.Validate())

	cfg.Coordinator.MaxConflictRetries = 3
	cfg.Coordinator.SweepSchedule = "every minute"
	assert.Error(t, cfg.Validate())

	cfg.Coordinator.SweepSchedule = "*/5 * * * *"
	assert.NoError(t, cfg.Validate())

	cfg.Coordinator.DefaultTimeout = 2 * 365 * 24 * time.Hour
	assert.Error(t, cfg.Validate())
}

func TestCacheKindWithSharedDatabase(t *testing.T) {
	t.Setenv("MULTISIGNER_DATABASE_DSN", "postgres://localhost:5432/multisigner")

	cfg, err := ReadConfig("config-does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Cache.Kind)

	testCases := []struct {
		kind    string
		wantErr bool
	}{
		{kind: "lru", wantErr: true},
		{kind: "redis"},
		{kind: "none"},
	}
	for _, tc := range testCases {
		t.Run(tc.kind, func(t *testing.T) {
			cfg.Cache.Kind = tc.kind
			if tc.wantErr {
				assert.Error(t, cfg.Validate())
				return
			}
			assert.NoError(t, cfg.Validate())
		})
	}

	t.Setenv("MULTISIGNER_CACHE_KIND", "lru")
	_, err = ReadConfig("config-does-not-exist")
	assert.Error(t, err)
}

func TestReadConfigAdminIdentities(t *testing.T) {
	cfg, err := ReadConfig("config-does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.AdminIdentities)

	t.Setenv("MULTISIGNER_SERVER_ADMIN_IDENTITIES", "ops-1,ops-2")
	cfg, err = ReadConfig("config-does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops-1", "ops-2"}, cfg.Server.AdminIdentities)
}
