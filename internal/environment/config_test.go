package environment_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/tmjob/internal/environment"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TMJOB_JOB_QUEUE_URL", "TMJOB_NATS_URL", "AWS_REGION", "TMJOB_SBATCH",
		"TMJOB_STATE_DIR", "TMJOB_LOG_LEVEL", "TMJOB_QUEUE_WAIT",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaultsWithoutEnvFile(t *testing.T) {
	clearEnv(t)

	cfg, err := environment.ReadEnvConfig(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	require.Equal(t, environment.DefaultAwsRegion, cfg.AwsRegion)
	require.Equal(t, environment.DefaultSbatch, cfg.SbatchPath)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, environment.DefaultPoll, cfg.QueueWait)
	require.Empty(t, cfg.JobQueueUrl)
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"TMJOB_JOB_QUEUE_URL=https://sqs.eu-central-1.amazonaws.com/1/jobs\n"+
			"TMJOB_LOG_LEVEL=debug\n"+
			"TMJOB_QUEUE_WAIT=5s\n"), 0o644))

	cfg, err := environment.ReadEnvConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://sqs.eu-central-1.amazonaws.com/1/jobs", cfg.JobQueueUrl)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, 5*time.Second, cfg.QueueWait)
}

func TestProcessEnvWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TMJOB_SBATCH=/opt/slurm/bin/sbatch\n"), 0o644))
	t.Setenv("TMJOB_SBATCH", "/usr/bin/sbatch")

	cfg, err := environment.ReadEnvConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/sbatch", cfg.SbatchPath)
}

func TestBadLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("TMJOB_LOG_LEVEL", "loud")

	_, err := environment.ReadEnvConfig(filepath.Join(t.TempDir(), ".env"))
	require.Error(t, err)
}
