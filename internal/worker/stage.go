package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/programme-lv/tmjob/api"
)

var ErrNoFileStore = errors.New("remote input without a file store")

// Fetcher is the part of the file store used to stage remote inputs
type Fetcher interface {
	Schedule(key string, url string) error
	Await(ctx context.Context, key string) ([]byte, error)
}

// StageInputs writes the job's input files into dir. Remote inputs are all
// scheduled before the first one is awaited.
func StageInputs(ctx context.Context, dir string, inputs []api.InputFile, store Fetcher) error {
	for _, in := range inputs {
		if !filepath.IsLocal(in.Name) {
			return fmt.Errorf("input name %q escapes the job directory", in.Name)
		}
		if in.Url == nil {
			continue
		}
		if store == nil {
			return fmt.Errorf("%w: %s", ErrNoFileStore, in.Name)
		}
		if in.Sha256 == nil {
			return fmt.Errorf("input %s has a url but no sha256", in.Name)
		}
		if err := store.Schedule(*in.Sha256, *in.Url); err != nil {
			return fmt.Errorf("failed to schedule input %s: %w", in.Name, err)
		}
	}

	for _, in := range inputs {
		var data []byte
		switch {
		case in.Content != nil:
			data = []byte(*in.Content)
		case in.Url != nil:
			var err error
			data, err = store.Await(ctx, *in.Sha256)
			if err != nil {
				return fmt.Errorf("failed to fetch input %s: %w", in.Name, err)
			}
		default:
			return fmt.Errorf("input %s needs content or url", in.Name)
		}

		path := filepath.Join(dir, in.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", in.Name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write input %s: %w", in.Name, err)
		}
	}
	return nil
}
