package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	metaFileName = "meta.json"
	bodyFileName = "body.xml"
)

// diskEntry holds cache metadata for a single key.
type diskEntry struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DiskCache keeps one directory per key under dir, named by a hash of the
// key, holding meta.json and the body.
type DiskCache struct {
	dir string
	now func() time.Time
}

// NewDiskCache creates a DiskCache rooted at dir.
func NewDiskCache(dir string) *DiskCache {
	if dir == "" {
		dir = "./var/upstream-cache"
	}
	return &DiskCache{dir: dir, now: time.Now}
}

func (c *DiskCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8]))
}

func (c *DiskCache) Match(_ context.Context, key string) ([]byte, bool, error) {
	path := c.pathFor(key)
	meta, err := loadMeta(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	// Hash prefix collision or stale entry.
	if meta.Key != key || !c.now().Before(meta.ExpiresAt) {
		return nil, false, nil
	}
	body, err := os.ReadFile(filepath.Join(path, bodyFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return body, true, nil
}

func (c *DiskCache) Put(_ context.Context, key string, body []byte, ttl time.Duration) error {
	path := c.pathFor(key)
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}

	// Write body first so meta never points at a missing body.
	if err := writeFileAtomic(filepath.Join(path, bodyFileName), body); err != nil {
		return err
	}

	now := c.now().UTC()
	data, err := json.MarshalIndent(&diskEntry{Key: key, StoredAt: now, ExpiresAt: now.Add(ttl)}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(path, metaFileName), data)
}

// Prune removes expired entries and returns how many were removed.
func (c *DiskCache) Prune(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	now := c.now()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		meta, err := loadMeta(path)
		if err == nil && now.Before(meta.ExpiresAt) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func loadMeta(path string) (diskEntry, error) {
	var meta diskEntry
	data, err := os.ReadFile(filepath.Join(path, metaFileName))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return diskEntry{}, err
	}
	return meta, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
