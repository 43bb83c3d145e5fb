package cache

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"main/pkg/exception"
)

// archiveTier is the optional tier-3 store: one plain file per key so the
// layout can be inspected and recovered independently of the process.
type archiveTier struct {
	dir string
	ttl time.Duration
}

func newArchiveTier(dir string, ttl time.Duration) (*archiveTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &archiveTier{dir: dir, ttl: ttl}, nil
}

func (t *archiveTier) path(key Key) string {
	name := strings.ReplaceAll(key.String(), "|", "__")
	return filepath.Join(t.dir, name+".book")
}

func (t *archiveTier) set(key Key, encoded []byte) error {
	return os.WriteFile(t.path(key), encoded, 0o644)
}

func (t *archiveTier) get(key Key) ([]byte, error) {
	data, err := os.ReadFile(t.path(key))
	if os.IsNotExist(err) {
		return nil, exception.ErrCacheMiss
	}
	return data, err
}

func (t *archiveTier) delete(key Key) error {
	err := os.Remove(t.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (t *archiveTier) deletePrefix(prefix string) error {
	filePrefix := strings.ReplaceAll(prefix, "|", "__")
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// sweep removes files older than the tier TTL.
func (t *archiveTier) sweep() error {
	if t.ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-t.ttl)
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(t.dir, entry.Name()))
		}
	}
	return nil
}
