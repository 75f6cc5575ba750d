package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ericselin/httpintercept/rfc9111"
)

// Refresher performs the GET that revalidates a warmed entry.
// pipeline.Engine satisfies this via its Do method.
type Refresher interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Warmer is an optional background process that keeps cache entries fresh
// before a request ever asks for them, supplementing the pull-based model
// in the core Cache interceptor: poll, find an entry close to expiry,
// refetch it, sleep if nothing is close, repeat forever until stopped.
type Warmer struct {
	journal   Journal
	refresher Refresher
	threshold time.Duration
	interval  time.Duration
	log       zerolog.Logger

	stop chan struct{}
}

type WarmerOption func(*Warmer)

func WithWarmerLogger(log zerolog.Logger) WarmerOption {
	return func(w *Warmer) { w.log = log }
}

// WithWarmerInterval overrides how long the warmer sleeps between scans
// when no entry is close to expiring. Defaults to threshold.
func WithWarmerInterval(interval time.Duration) WarmerOption {
	return func(w *Warmer) { w.interval = interval }
}

// NewWarmer returns a Warmer that revalidates entries whose remaining
// freshness lifetime drops below threshold. It does nothing until Start is
// called.
func NewWarmer(journal Journal, refresher Refresher, threshold time.Duration, opts ...WarmerOption) *Warmer {
	w := &Warmer{
		journal:   journal,
		refresher: refresher,
		threshold: threshold,
		interval:  threshold,
		log:       zerolog.Nop(),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the warmer loop in its own goroutine until Stop is called.
func (w *Warmer) Start() {
	go w.run()
}

func (w *Warmer) Stop() {
	close(w.stop)
}

func (w *Warmer) run() {
	w.log.Info().Dur("threshold", w.threshold).Msg("cache warmer started")
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		candidate, ok := w.nearestToExpiry()
		if !ok || candidate.URL == "" {
			w.sleep(w.interval)
			continue
		}

		if w.remainingFreshness(candidate) > w.threshold {
			w.sleep(w.interval)
			continue
		}

		w.refresh(candidate)
	}
}

func (w *Warmer) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-w.stop:
	}
}

// nearestToExpiry walks every entry when the journal exposes one (the
// default MemJournal/BinaryJournal do, via the unexported all() also used
// by Evictor), picking the lowest remaining-freshness entry. Journals that
// don't expose a full walk (cache/sqlitejournal) fall back to the
// frecency-based Oldest - a weaker approximation, but an entry will still
// eventually surface and get refreshed.
func (w *Warmer) nearestToExpiry() (*Entry, bool) {
	type lister interface{ all() []*Entry }
	l, ok := w.journal.(lister)
	if !ok {
		return w.journal.Oldest()
	}

	entries := l.all()
	if len(entries) == 0 {
		return nil, false
	}
	best := entries[0]
	bestRemaining := w.remainingFreshness(best)
	for _, e := range entries[1:] {
		if r := w.remainingFreshness(e); r < bestRemaining {
			best, bestRemaining = e, r
		}
	}
	return best, true
}

func (w *Warmer) remainingFreshness(e *Entry) time.Duration {
	res := &http.Response{Header: e.Header}
	return rfc9111.RemainingFreshness(res, e.RequestTime, e.ResponseTime)
}

func (w *Warmer) refresh(e *Entry) {
	req, err := http.NewRequest(http.MethodGet, e.URL, nil)
	if err != nil {
		w.log.Warn().Err(err).Str("url", e.URL).Msg("cache warmer: could not build refresh request")
		return
	}
	for name, values := range e.VarySnapshot {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	w.log.Debug().Str("key", e.PrimaryKey).Dur("remaining", w.remainingFreshness(e)).Msg("warming entry")
	if _, err := w.refresher.Do(context.Background(), req); err != nil {
		w.log.Warn().Err(err).Str("key", e.PrimaryKey).Msg("cache warmer: refresh failed")
	}
}
