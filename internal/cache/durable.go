package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const entrySuffix = ".json"

// durableTier is the slow tier: one file per entry under a flat directory,
// named by the entry's key hash. Writes go through a temp file and rename,
// so readers never observe a torn entry.
type durableTier struct {
	dir string

	// mu serializes writers. Reads go straight to the filesystem; the
	// rename protocol keeps them consistent.
	mu sync.Mutex
}

func newDurableTier(dir string) (*durableTier, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &durableTier{dir: dir}, nil
}

func (d *durableTier) path(key string) string {
	return filepath.Join(d.dir, key+entrySuffix)
}

func (d *durableTier) get(key string) (Entry, bool) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt entry is a miss; the next write replaces it.
		return Entry{}, false
	}

	return e, true
}

func (d *durableTier) put(key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp, err := os.CreateTemp(d.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}

	if err := os.Rename(tmpName, d.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}

	return nil
}

// clear removes every entry file.
func (d *durableTier) clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	names, err := d.entryNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}

	return nil
}

// sweep removes entries stored before the cutoff and returns how many were
// removed. Entry age comes from the stored-at stamp inside the file, not
// from filesystem metadata.
func (d *durableTier) sweep(cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	names, err := d.entryNames()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		path := filepath.Join(d.dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var e Entry
		if err := json.Unmarshal(data, &e); err == nil &&
			!e.StoredAt.Before(cutoff) {

			continue
		}

		// Too old, or unreadable.
		if err := os.Remove(path); err == nil {
			removed++
		}
	}

	return removed, nil
}

func (d *durableTier) entryNames() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entrySuffix) {
			continue
		}
		names = append(names, de.Name())
	}

	return names, nil
}
