// Package sqlitejournal is an alternate cache.Journal backend for callers
// who want SQL-queryable cache state instead of the default binary snapshot
// (cache.BinaryJournal): one table, a write mutex around every mutation,
// WAL mode.
package sqlitejournal

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/ericselin/httpintercept/cache"
)

// Journal is a cache.Journal backed by a SQLite database. The schema keys
// rows by (primary_key, secondary_key) and stores the rest of the Entry as
// a cache.EncodeEntry blob, so the wire format stays identical to
// BinaryJournal's.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) a SQLite-backed journal at path. An
// empty path opens the process-wide shared in-memory database
// ("file::memory:?cache=shared"), useful for tests.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	if _, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		primary_key TEXT NOT NULL,
		secondary_key TEXT NOT NULL,
		persisted_size INTEGER NOT NULL,
		hit_count INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL,
		body BLOB NOT NULL,
		PRIMARY KEY (primary_key, secondary_key)
	)`); err != nil {
		return err
	}
	if _, err := j.db.Exec("CREATE INDEX IF NOT EXISTS entries_access_idx ON entries (last_accessed)"); err != nil {
		return err
	}
	_, err := j.db.Exec("PRAGMA journal_mode=WAL")
	return err
}

func (j *Journal) Get(primaryKey, secondaryKey string) (*cache.Entry, bool) {
	var body []byte
	err := j.db.QueryRow(
		"SELECT body FROM entries WHERE primary_key = ? AND secondary_key = ?",
		primaryKey, secondaryKey,
	).Scan(&body)
	if err != nil {
		return nil, false
	}
	entry, err := cache.DecodeEntry(body)
	if err != nil {
		return nil, false
	}
	entry.PrimaryKey = primaryKey
	entry.SecondaryKey = secondaryKey
	return entry, true
}

func (j *Journal) Variants(primaryKey string) []*cache.Entry {
	rows, err := j.db.Query(
		"SELECT secondary_key, body FROM entries WHERE primary_key = ?", primaryKey,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []*cache.Entry
	for rows.Next() {
		var secondaryKey string
		var body []byte
		if err := rows.Scan(&secondaryKey, &body); err != nil {
			continue
		}
		entry, err := cache.DecodeEntry(body)
		if err != nil {
			continue
		}
		entry.PrimaryKey = primaryKey
		entry.SecondaryKey = secondaryKey
		out = append(out, entry)
	}
	return out
}

func (j *Journal) Put(entry *cache.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	body := cache.EncodeEntry(entry)
	_, err := j.db.Exec(`INSERT INTO entries
		(primary_key, secondary_key, persisted_size, hit_count, last_accessed, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (primary_key, secondary_key) DO UPDATE SET
			persisted_size = excluded.persisted_size,
			hit_count = excluded.hit_count,
			last_accessed = excluded.last_accessed,
			body = excluded.body`,
		entry.PrimaryKey, entry.SecondaryKey, entry.PersistedResponseSize,
		entry.HitCount, entry.LastAccessedAt.Unix(), body)
	return err
}

func (j *Journal) Delete(primaryKey, secondaryKey string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		"DELETE FROM entries WHERE primary_key = ? AND secondary_key = ?",
		primaryKey, secondaryKey)
	return err
}

func (j *Journal) DeleteAll(primaryKey string) ([]*cache.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		"SELECT secondary_key, body FROM entries WHERE primary_key = ?", primaryKey,
	)
	if err != nil {
		return nil, err
	}
	var removed []*cache.Entry
	for rows.Next() {
		var secondaryKey string
		var body []byte
		if err := rows.Scan(&secondaryKey, &body); err != nil {
			continue
		}
		entry, err := cache.DecodeEntry(body)
		if err != nil {
			continue
		}
		entry.PrimaryKey = primaryKey
		entry.SecondaryKey = secondaryKey
		removed = append(removed, entry)
	}
	rows.Close()

	if _, err := j.db.Exec("DELETE FROM entries WHERE primary_key = ?", primaryKey); err != nil {
		return nil, err
	}
	return removed, nil
}

// Oldest returns the lowest-scoring entry. SQLite has no notion of the
// frecency formula, so this loads and decodes every row's encoded entry
// and scores them in Go - acceptable since eviction only runs
// when the journal is already over budget, not on the hot path.
func (j *Journal) Oldest() (*cache.Entry, bool) {
	rows, err := j.db.Query("SELECT primary_key, secondary_key, body FROM entries")
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var oldest *cache.Entry
	var lowestScore float64
	now := time.Now()
	for rows.Next() {
		var primaryKey, secondaryKey string
		var body []byte
		if err := rows.Scan(&primaryKey, &secondaryKey, &body); err != nil {
			continue
		}
		entry, err := cache.DecodeEntry(body)
		if err != nil {
			continue
		}
		entry.PrimaryKey = primaryKey
		entry.SecondaryKey = secondaryKey
		score := entry.Score(now)
		if oldest == nil || score < lowestScore {
			oldest = entry
			lowestScore = score
		}
	}
	return oldest, oldest != nil
}

func (j *Journal) TotalSize() int64 {
	var total sql.NullInt64
	if err := j.db.QueryRow("SELECT SUM(persisted_size) FROM entries").Scan(&total); err != nil {
		return 0
	}
	return total.Int64
}

func (j *Journal) Close() error {
	return j.db.Close()
}
