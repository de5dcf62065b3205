package logwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const (
	DefaultFailedDir    = "failed_jobs"
	DefaultCompanionDir = "companions_of_failed_jobs"
)

type Move struct {
	From string
	To   string
}

// Relocator moves failed job directories out of the way so a rerun only
// sees the jobs that still need work.
type Relocator struct {
	// Root holds FailedDir and CompanionDir
	Root         string
	FailedDir    string
	CompanionDir string
	// Prefix limits relocation to directories whose name contains it.
	// The directory named without the prefix is its companion.
	Prefix string

	logger *slog.Logger
}

func NewRelocator(root string, logger *slog.Logger) *Relocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relocator{
		Root:         root,
		FailedDir:    DefaultFailedDir,
		CompanionDir: DefaultCompanionDir,
		logger:       logger,
	}
}

func (r *Relocator) Relocate(report Report) ([]Move, error) {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil, nil
	}

	failedRoot := filepath.Join(r.Root, r.FailedDir)
	if err := os.MkdirAll(failedRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create failed jobs dir: %w", err)
	}
	companionRoot := filepath.Join(r.Root, r.CompanionDir)
	if r.Prefix != "" {
		if err := os.MkdirAll(companionRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create companion dir: %w", err)
		}
	}

	var moves []Move
	for _, res := range failed {
		dir := filepath.Clean(res.Dir)
		base := filepath.Base(dir)
		if r.Prefix != "" && !strings.Contains(base, r.Prefix) {
			continue
		}
		if !exists(dir) {
			continue
		}

		dst, err := move(dir, filepath.Join(failedRoot, base))
		if err != nil {
			return moves, err
		}
		moves = append(moves, Move{From: dir, To: dst})
		r.logger.Info("moved failed job", "from", dir, "to", dst)

		if r.Prefix == "" {
			continue
		}
		companion := filepath.Join(filepath.Dir(dir), strings.ReplaceAll(base, r.Prefix, ""))
		if companion == dir || !exists(companion) {
			continue
		}
		dst, err = move(companion, filepath.Join(companionRoot, filepath.Base(companion)))
		if err != nil {
			return moves, err
		}
		moves = append(moves, Move{From: companion, To: dst})
		r.logger.Info("moved companion job", "from", companion, "to", dst)
	}
	return moves, nil
}

// move renames src to dst, or to dst.1, dst.2 and so on when an earlier
// relocation already took the name. Across filesystems the tree is copied
// and the source removed.
func move(src, dst string) (string, error) {
	target := dst
	for i := 1; exists(target); i++ {
		target = fmt.Sprintf("%s.%d", dst, i)
	}

	err := os.Rename(src, target)
	if errors.Is(err, syscall.EXDEV) {
		if err = os.CopyFS(target, os.DirFS(src)); err == nil {
			err = os.RemoveAll(src)
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", src, target, err)
	}
	return target, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
