package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.CoordinatorMaxWait)
	assert.Equal(t, 5*time.Second, cfg.CoordinatorTimeout)
	assert.True(t, cfg.AllowDirectActivation)
	assert.False(t, cfg.AutoCompleteTransfers)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxAttempts)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "http_addr: \":9000\"\ncoordinator_timeout: 10s\noutbox_batch_size: 20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("POLICY_AUTO_COMPLETE_TRANSFERS", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.CoordinatorTimeout)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AutoCompleteTransfers)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	_, err := Load(t.TempDir())
	require.NoError(t, err)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("COORDINATOR_MAX_WAIT", "0s")
	_, err := Load()
	require.Error(t, err)
}
