package cache

import (
	"fmt"
	"sync"
	"time"
)

// Journal is the in-memory index of cache entries, durably persisted by
// whichever backend implements it. New uses MemJournal (not persisted)
// unless another journal is supplied; BinaryJournal (a debounced,
// temp-file-plus-rename binary snapshot) persists to disk, and an
// alternative SQLite-backed implementation lives in cache/sqlitejournal.
//
// Implementations must be safe for concurrent use.
type Journal interface {
	// Get returns the entry for the given primary/secondary key pair.
	Get(primaryKey, secondaryKey string) (*Entry, bool)
	// Variants returns every stored entry for a primary key, used to
	// evaluate Vary-based matching against a new request.
	Variants(primaryKey string) []*Entry
	// Put inserts or replaces an entry.
	Put(entry *Entry) error
	// Delete removes a single entry.
	Delete(primaryKey, secondaryKey string) error
	// DeleteAll removes every entry for a primary key (unsafe-method
	// invalidation) and returns the entries that were removed, so the
	// caller can delete their corresponding body blobs.
	DeleteAll(primaryKey string) ([]*Entry, error)
	// Oldest returns the lowest-scoring entry by the frecency heuristic,
	// for the eviction policy to consider first.
	Oldest() (*Entry, bool)
	// TotalSize reports the sum of PersistedResponseSize across all
	// entries, the size the eviction policy compares against its budget.
	TotalSize() int64
	// Close flushes any pending write and releases resources.
	Close() error
}

// MemJournal is an in-memory Journal with no persistence, useful for
// tests and for callers who accept losing the cache across restarts.
type MemJournal struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry // primaryKey -> secondaryKey -> entry
	size    int64
}

// NewMemJournal returns an empty MemJournal.
func NewMemJournal() *MemJournal {
	return &MemJournal{entries: make(map[string]map[string]*Entry)}
}

func (j *MemJournal) Get(primaryKey, secondaryKey string) (*Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	variants, ok := j.entries[primaryKey]
	if !ok {
		return nil, false
	}
	e, ok := variants[secondaryKey]
	return e, ok
}

func (j *MemJournal) Variants(primaryKey string) []*Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	variants, ok := j.entries[primaryKey]
	if !ok {
		return nil
	}
	out := make([]*Entry, 0, len(variants))
	for _, e := range variants {
		out = append(out, e)
	}
	return out
}

func (j *MemJournal) Put(entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	variants, ok := j.entries[entry.PrimaryKey]
	if !ok {
		variants = make(map[string]*Entry)
		j.entries[entry.PrimaryKey] = variants
	}
	if old, ok := variants[entry.SecondaryKey]; ok {
		j.size -= old.PersistedResponseSize
	}
	variants[entry.SecondaryKey] = entry
	j.size += entry.PersistedResponseSize
	return nil
}

func (j *MemJournal) Delete(primaryKey, secondaryKey string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	variants, ok := j.entries[primaryKey]
	if !ok {
		return nil
	}
	if e, ok := variants[secondaryKey]; ok {
		j.size -= e.PersistedResponseSize
		delete(variants, secondaryKey)
	}
	if len(variants) == 0 {
		delete(j.entries, primaryKey)
	}
	return nil
}

func (j *MemJournal) DeleteAll(primaryKey string) ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	variants := j.entries[primaryKey]
	removed := make([]*Entry, 0, len(variants))
	for _, e := range variants {
		j.size -= e.PersistedResponseSize
		removed = append(removed, e)
	}
	delete(j.entries, primaryKey)
	return removed, nil
}

func (j *MemJournal) Oldest() (*Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var oldest *Entry
	now := time.Now()
	var lowestScore float64
	for _, variants := range j.entries {
		for _, e := range variants {
			score := e.Score(now)
			if oldest == nil || score < lowestScore {
				oldest = e
				lowestScore = score
			}
		}
	}
	return oldest, oldest != nil
}

func (j *MemJournal) TotalSize() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

func (j *MemJournal) Close() error { return nil }

// all returns a flat snapshot of every entry, used by BinaryJournal to
// serialize and by the Warmer to walk the whole journal.
func (j *MemJournal) all() []*Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*Entry, 0)
	for _, variants := range j.entries {
		for _, e := range variants {
			out = append(out, e)
		}
	}
	return out
}

// ErrCorruptSnapshot is returned by readSnapshot when the file's
// magic/version header does not match.
var ErrCorruptSnapshot = fmt.Errorf("journal: corrupt or incompatible snapshot")
