package cache

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Evictor enforces a maximum total cache size by repeatedly deleting the
// lowest-frecency-scoring entry (journal entry + its body blob) until the
// journal's TotalSize is at or below maxSize.
type Evictor struct {
	journal Journal
	blobs   BodyStore
	maxSize int64
	log     zerolog.Logger
}

// NewEvictor returns an Evictor bounding journal+blobs to maxSize bytes.
// A maxSize of 0 disables eviction.
func NewEvictor(journal Journal, blobs BodyStore, maxSize int64, log zerolog.Logger) *Evictor {
	return &Evictor{journal: journal, blobs: blobs, maxSize: maxSize, log: log}
}

// EvictIfNeeded deletes entries, lowest-scoring first, until TotalSize is
// at or below the configured maximum. Called after every blob write.
func (e *Evictor) EvictIfNeeded() {
	if e.maxSize <= 0 {
		return
	}
	for e.journal.TotalSize() > e.maxSize {
		victim, ok := e.lowestScoring()
		if !ok {
			return
		}
		if err := e.blobs.Delete(victim.SecondaryKey); err != nil {
			e.log.Error().Err(err).Str("key", victim.SecondaryKey).Msg("eviction: failed to delete blob")
		}
		if err := e.journal.Delete(victim.PrimaryKey, victim.SecondaryKey); err != nil {
			e.log.Error().Err(err).Str("key", victim.SecondaryKey).Msg("eviction: failed to delete journal entry")
		}
	}
}

// lowestScoring breaks ties by older LastAccessedAt. The journal's own
// Oldest only tracks the lowest score; eviction needs the
// tie-break so this walks the full set directly via a type assertion
// where available, falling back to Oldest's single answer otherwise.
func (e *Evictor) lowestScoring() (*Entry, bool) {
	type lister interface{ all() []*Entry }
	l, ok := e.journal.(lister)
	if !ok {
		return e.journal.Oldest()
	}

	entries := l.all()
	if len(entries) == 0 {
		return nil, false
	}
	now := time.Now()
	sort.Slice(entries, func(i, j int) bool {
		si, sj := entries[i].Score(now), entries[j].Score(now)
		if si != sj {
			return si < sj
		}
		return entries[i].LastAccessedAt.Before(entries[j].LastAccessedAt)
	})
	return entries[0], true
}
