package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const defaultLockRetry = 25 * time.Millisecond

// DocumentFile is a single file rewritten as a whole on every change.
// Access is serialized inside the process by a mutex and across processes
// by an advisory lock on a sibling "<path>.lock" file, so a daemon and a
// CLI sharing the path never lose each other's updates.
type DocumentFile struct {
	path       string
	lock       *flock.Flock
	mu         sync.Mutex
	retryDelay time.Duration
}

// NewDocumentFile prepares a document at path, creating its directory.
// The file itself is not created until the first write.
func NewDocumentFile(path string) (*DocumentFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &DocumentFile{
		path:       path,
		lock:       flock.New(path + ".lock"),
		retryDelay: defaultLockRetry,
	}, nil
}

// Path returns the document location
func (d *DocumentFile) Path() string {
	return d.path
}

// Read returns the current contents under a shared lock.
// A missing file reads as nil with no error.
func (d *DocumentFile) Read(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	locked, err := d.lock.TryRLockContext(ctx, d.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire read lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire read lock: %s", d.lock.Path())
	}
	defer d.lock.Unlock()

	return d.readLocked()
}

// Write replaces the contents under an exclusive lock
func (d *DocumentFile) Write(ctx context.Context, data []byte) error {
	return d.Update(ctx, func([]byte) ([]byte, error) {
		return data, nil
	})
}

// Update runs one read-modify-write cycle under an exclusive lock. fn
// receives the current contents (nil when the file does not exist) and
// returns the replacement. A nil replacement leaves the file untouched, and
// an error from fn aborts the cycle without writing.
func (d *DocumentFile) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	locked, err := d.lock.TryLockContext(ctx, d.retryDelay)
	if err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire write lock: %s", d.lock.Path())
	}
	defer d.lock.Unlock()

	current, err := d.readLocked()
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	if err := writeFileAtomic(d.path, next, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (d *DocumentFile) readLocked() ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}
