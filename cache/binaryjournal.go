package cache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// debounceDelay is the interval BinaryJournal waits after the last mutation
// before writing a snapshot to disk.
const debounceDelay = time.Second

// BinaryJournal is the default durable Journal: an in-memory MemJournal
// mirrored to disk as a length-prefixed binary snapshot, written no more
// often than once per debounceDelay, using a temp-file-plus-rename pattern
// for atomic durability.
type BinaryJournal struct {
	*MemJournal
	path string
	log  zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	closed  bool
}

// OpenBinaryJournal loads an existing snapshot at path (if any) and
// returns a BinaryJournal that persists future mutations there. If the
// file is missing or its contents are corrupt, recovery falls back to an
// empty journal and immediately persists that empty state, so a crash
// right after doesn't leave a stale snapshot around to be misread later.
func OpenBinaryJournal(path string, log zerolog.Logger) (*BinaryJournal, error) {
	mem := NewMemJournal()
	recoveredEmpty := false

	if f, err := os.Open(path); err == nil {
		entries, err := readSnapshot(f)
		f.Close()
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("could not read journal snapshot, starting empty")
			recoveredEmpty = true
		} else {
			for _, e := range entries {
				mem.Put(e)
			}
		}
	} else if os.IsNotExist(err) {
		recoveredEmpty = true
	} else {
		return nil, err
	}

	j := &BinaryJournal{MemJournal: mem, path: path, log: log}
	if recoveredEmpty {
		if err := j.writeSnapshotAtomic(nil); err != nil {
			log.Error().Err(err).Str("path", path).Msg("could not persist recovered empty journal")
		}
	}
	return j, nil
}

func (j *BinaryJournal) Put(entry *Entry) error {
	if err := j.MemJournal.Put(entry); err != nil {
		return err
	}
	j.scheduleFlush()
	return nil
}

func (j *BinaryJournal) Delete(primaryKey, secondaryKey string) error {
	if err := j.MemJournal.Delete(primaryKey, secondaryKey); err != nil {
		return err
	}
	j.scheduleFlush()
	return nil
}

func (j *BinaryJournal) DeleteAll(primaryKey string) ([]*Entry, error) {
	removed, err := j.MemJournal.DeleteAll(primaryKey)
	if err != nil {
		return nil, err
	}
	j.scheduleFlush()
	return removed, nil
}

func (j *BinaryJournal) scheduleFlush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.dirty = true
	if j.timer != nil {
		j.timer.Stop()
	}
	j.timer = time.AfterFunc(debounceDelay, j.flush)
}

func (j *BinaryJournal) flush() {
	j.mu.Lock()
	if !j.dirty {
		j.mu.Unlock()
		return
	}
	j.dirty = false
	j.mu.Unlock()

	entries := j.MemJournal.all()
	if err := j.writeSnapshotAtomic(entries); err != nil {
		j.log.Error().Err(err).Str("path", j.path).Msg("journal snapshot write failed")
	}
}

func (j *BinaryJournal) writeSnapshotAtomic(entries []*Entry) error {
	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeSnapshot(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, j.path)
}

// Close flushes any pending write synchronously before releasing resources.
func (j *BinaryJournal) Close() error {
	j.mu.Lock()
	if j.timer != nil {
		j.timer.Stop()
	}
	wasDirty := j.dirty
	j.dirty = false
	j.closed = true
	j.mu.Unlock()

	if wasDirty {
		if err := j.writeSnapshotAtomic(j.MemJournal.all()); err != nil {
			return err
		}
	}
	return nil
}
