package xdg

import (
	"os"
	"path/filepath"
)

const AppName = "tmjob"

// Dirs holds the XDG base directories tmjob writes to.
type Dirs struct {
	stateHome string
	cacheHome string
}

func New() *Dirs {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			home = os.TempDir()
		}
	}
	return &Dirs{
		stateHome: fromEnv("XDG_STATE_HOME", filepath.Join(home, ".local", "state")),
		cacheHome: fromEnv("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
	}
}

// fromEnv ignores relative paths, as the XDG base directory rules require.
func fromEnv(key string, fallback string) string {
	v := os.Getenv(key)
	if v == "" || !filepath.IsAbs(v) {
		return fallback
	}
	return v
}

func (d *Dirs) StateHome() string { return d.stateHome }

func (d *Dirs) CacheHome() string { return d.cacheHome }

// JobsDir is where the worker stages job directories.
func (d *Dirs) JobsDir() string {
	return filepath.Join(d.stateHome, AppName, "jobs")
}

// FilesDir and TmpDir back the file store.
func (d *Dirs) FilesDir() string {
	return filepath.Join(d.cacheHome, AppName, "files")
}

func (d *Dirs) TmpDir() string {
	return filepath.Join(d.cacheHome, AppName, "tmp")
}
