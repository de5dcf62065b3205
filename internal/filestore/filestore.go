package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrNotScheduled = errors.New("file has not been scheduled for download")
	ErrIntegrity    = errors.New("sha256 mismatch")
	ErrInvalidKey   = errors.New("key is not a sha256 hex digest")
)

var keyRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

type entry struct {
	url  string
	once sync.Once
	done chan struct{}
	err  error
}

// FileStore is a content-addressed cache of remote input files. Files are
// keyed by the sha256 of their decoded content.
type FileStore struct {
	fileDirectory string
	tmpDirectory  string
	client        *http.Client
	entries       *xsync.MapOf[string, *entry]
	awaitedKeys   chan string
	scheduledKeys chan string
	logger        *slog.Logger
}

func New(fileDir string, tmpDir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(fileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}
	return &FileStore{
		fileDirectory: fileDir,
		tmpDirectory:  tmpDir,
		client:        http.DefaultClient,
		entries:       xsync.NewMapOf[string, *entry](),
		awaitedKeys:   make(chan string, 10000),
		scheduledKeys: make(chan string, 10000),
		logger:        logger,
	}, nil
}

// Schedule queues a download unless the key is already known.
func (fs *FileStore) Schedule(key string, fileUrl string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := url.ParseRequestURI(fileUrl); err != nil {
		return fmt.Errorf("failed to parse url %s: %w", fileUrl, err)
	}
	_, loaded := fs.entries.LoadOrStore(key, &entry{url: fileUrl, done: make(chan struct{})})
	if loaded {
		return nil
	}
	fs.scheduledKeys <- key
	return nil
}

// Await moves the key to the front of the queue and blocks until its
// download has finished.
func (fs *FileStore) Await(ctx context.Context, key string) ([]byte, error) {
	e, ok := fs.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotScheduled, key)
	}

	select {
	case fs.awaitedKeys <- key:
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}

	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", key, err)
	}
	return data, nil
}

// Start downloads scheduled files one at a time until ctx is done. Awaited
// keys go first.
func (fs *FileStore) Start(ctx context.Context) {
	for {
		var key string
		select {
		case key = <-fs.awaitedKeys:
		default:
			select {
			case key = <-fs.awaitedKeys:
			case key = <-fs.scheduledKeys:
			case <-ctx.Done():
				return
			}
		}
		fs.process(ctx, key)
	}
}

func (fs *FileStore) process(ctx context.Context, key string) {
	e, ok := fs.entries.Load(key)
	if !ok {
		return
	}
	e.once.Do(func() {
		e.err = fs.downloadIfDoesNotExist(ctx, key, e.url)
		if e.err != nil {
			fs.logger.Error("failed to download file", "key", key, "url", e.url, "error", e.err)
			// forget the failure so that a later Schedule retries
			fs.entries.Delete(key)
		}
		close(e.done)
	})
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.fileDirectory, key)
}

func (fs *FileStore) downloadIfDoesNotExist(ctx context.Context, key string, fileUrl string) error {
	if _, err := os.Stat(fs.path(key)); err == nil {
		return nil
	}

	fs.logger.Info("downloading file", "key", key, "url", fileUrl)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileUrl, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := fs.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file %s: status %s", key, resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Type") == "application/zstd" || path.Ext(req.URL.Path) == ".zst" {
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		body = d
	}

	tmp, err := os.CreateTemp(fs.tmpDirectory, key+"-*")
	if err != nil {
		return fmt.Errorf("failed to create tmp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, hash), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", key, err)
	}

	if got := hex.EncodeToString(hash.Sum(nil)); got != key {
		return fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, key, got)
	}

	if err := os.Rename(tmp.Name(), fs.path(key)); err != nil {
		return fmt.Errorf("failed to move file %s to file store: %w", key, err)
	}
	return nil
}
