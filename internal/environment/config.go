package environment

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAwsRegion = "eu-central-1"
	DefaultSbatch    = "sbatch"
	DefaultPoll      = 20 * time.Second
)

type EnvConfig struct {
	// JobQueueUrl is the SQS queue the worker consumes job requests from
	JobQueueUrl string
	NatsUrl     string
	AwsRegion   string
	SbatchPath  string
	LogLevel    slog.Level
	// StateDir overrides the XDG state directory when set
	StateDir string
	// QueueWait is the SQS long-poll duration
	QueueWait time.Duration
}

// ReadEnvConfig loads the given .env files (default ".env") into the process
// environment and reads the configuration from it. Missing .env files are
// not an error.
func ReadEnvConfig(envFiles ...string) (*EnvConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	result := &EnvConfig{
		JobQueueUrl: os.Getenv("TMJOB_JOB_QUEUE_URL"),
		NatsUrl:     os.Getenv("TMJOB_NATS_URL"),
		AwsRegion:   getenv("AWS_REGION", DefaultAwsRegion),
		SbatchPath:  getenv("TMJOB_SBATCH", DefaultSbatch),
		StateDir:    os.Getenv("TMJOB_STATE_DIR"),
		QueueWait:   DefaultPoll,
	}

	if lvl := os.Getenv("TMJOB_LOG_LEVEL"); lvl != "" {
		if err := result.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("failed to parse TMJOB_LOG_LEVEL: %w", err)
		}
	}

	if wait := os.Getenv("TMJOB_QUEUE_WAIT"); wait != "" {
		d, err := time.ParseDuration(wait)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TMJOB_QUEUE_WAIT: %w", err)
		}
		result.QueueWait = d
	}

	return result, nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
