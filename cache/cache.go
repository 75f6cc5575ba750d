package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ericselin/httpintercept/pipeline"
	"github.com/ericselin/httpintercept/rfc9111"
	"github.com/ericselin/httpintercept/rfc9211"
)

// overlayOn304 lists the response header fields a 304 (Not Modified) reply
// is permitted to update on a stored entry.
var overlayOn304 = []string{"Cache-Control", "Date", "ETag", "Expires", "Last-Modified", "Vary", "Warning"}

// Cache is the HTTP cache interceptor: it implements pipeline.Interceptor
// and orchestrates lookup, conditional revalidation, write-through,
// stale-while-revalidate, stale-if-error, and invalidation.
type Cache struct {
	name    string
	journal Journal
	blobs   BodyStore
	evictor *Evictor
	maxSize int64
	shared  bool
	log     zerolog.Logger

	writes singleflight.Group
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithName sets the cache's identifier as reported in the Cache-Status
// header field, §2.1 of RFC 9211. Defaults to "httpcache".
func WithName(name string) Option {
	return func(c *Cache) { c.name = name }
}

// WithJournal selects the Journal backend. Defaults to an unbounded
// in-memory MemJournal; pass cache.OpenBinaryJournal for durable storage,
// or sqlitejournal.Open(path) for the SQL-queryable alternative.
func WithJournal(journal Journal) Option {
	return func(c *Cache) { c.journal = journal }
}

// WithMaxSize bounds total blob size, triggering frecency eviction once
// exceeded. A size of 0 (the default) disables eviction.
func WithMaxSize(maxSize int64) Option {
	return func(c *Cache) { c.maxSize = maxSize }
}

// WithLogger attaches a zerolog.Logger for cache diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithSharedCache configures the cache to behave as a shared (multi-user)
// cache, which must not store responses marked private. The default is a
// private, single-user cache that stores private responses too.
func WithSharedCache() Option {
	return func(c *Cache) { c.shared = true }
}

// New builds a Cache over the given body store. The journal defaults to an
// in-memory MemJournal; pass WithJournal to use a durable or alternative
// backend.
func New(blobs BodyStore, opts ...Option) *Cache {
	c := &Cache{
		name:    "httpcache",
		journal: NewMemJournal(),
		blobs:   blobs,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	reconcile(c.journal, c.blobs, c.log)
	c.evictor = NewEvictor(c.journal, c.blobs, c.maxSize, c.log)
	return c
}

// reconcile diffs a just-opened journal against its body store and deletes
// whichever side holds the minority: a journal entry with no matching blob
// (the blob was lost or never finished writing), or a blob with no matching
// journal entry (an orphan left behind by a crash between Put calls).
//
// Both sides must support enumeration for this to run: journal must satisfy
// the unexported lister interface (MemJournal and BinaryJournal do, via
// embedding; sqlitejournal.Journal does not and is skipped), and blobs must
// implement BlobLister.
func reconcile(journal Journal, blobs BodyStore, log zerolog.Logger) {
	type lister interface{ all() []*Entry }
	l, ok := journal.(lister)
	if !ok {
		return
	}
	bl, ok := blobs.(BlobLister)
	if !ok {
		return
	}

	blobKeys, err := bl.Keys()
	if err != nil {
		log.Warn().Err(err).Msg("cache: could not list body store contents for reconciliation")
		return
	}
	blobSet := make(map[string]bool, len(blobKeys))
	for _, k := range blobKeys {
		blobSet[k] = true
	}

	entries := l.all()
	entrySet := make(map[string]bool, len(entries))
	for _, e := range entries {
		entrySet[e.SecondaryKey] = true
		if !blobSet[e.SecondaryKey] {
			log.Warn().Str("key", e.SecondaryKey).Msg("cache: journal entry has no matching blob, deleting orphaned entry")
			if err := journal.Delete(e.PrimaryKey, e.SecondaryKey); err != nil {
				log.Error().Err(err).Str("key", e.SecondaryKey).Msg("cache: failed to delete orphaned journal entry")
			}
		}
	}
	for _, key := range blobKeys {
		if !entrySet[key] {
			log.Warn().Str("key", key).Msg("cache: blob has no matching journal entry, deleting orphaned blob")
			if err := blobs.Delete(key); err != nil {
				log.Error().Err(err).Str("key", key).Msg("cache: failed to delete orphaned blob")
			}
		}
	}
}

// Dispose flushes the journal.
func (c *Cache) Dispose() error {
	return c.journal.Close()
}

func (c *Cache) OnRequest(ctx context.Context, req *http.Request) (pipeline.RequestOutcome, error) {
	if rfc9111.UnsafeRequest(req) {
		removed, err := c.journal.DeleteAll(PrimaryKey(req))
		if err != nil {
			c.log.Error().Err(err).Msg("cache: invalidation failed")
		}
		for _, e := range removed {
			if err := c.blobs.Delete(e.SecondaryKey); err != nil {
				c.log.Error().Err(err).Str("key", e.SecondaryKey).Msg("cache: failed to delete invalidated blob")
			}
		}
		return pipeline.Next(req), nil
	}
	if req.Method != http.MethodGet {
		return pipeline.Next(req), nil
	}

	primaryKey := PrimaryKey(req)
	entry, ok := c.findMatch(primaryKey, req)
	if !ok {
		c.log.Debug().Str("key", primaryKey).Msg("cache miss")
		return pipeline.Next(req), nil
	}

	body, err := c.blobs.Get(entry.SecondaryKey, digest.Digest(entry.BodyDigest))
	if err != nil {
		c.log.Warn().Err(err).Str("key", entry.SecondaryKey).Msg("cache: body blob unavailable, treating as miss")
		c.purge(entry)
		return pipeline.Next(req), nil
	}

	storedReq := &http.Request{URL: req.URL, Header: entry.VarySnapshot.Clone()}
	storedRes := c.buildStoredResponse(entry, body)

	reusable, validationReq, fwdReason := rfc9111.ConstructReusableResponse(req, storedReq, storedRes, entry.RequestTime, entry.ResponseTime)
	reusable.Request = req

	if fwdReason == "" {
		now := time.Now()
		entry.Touch(now)
		c.journal.Put(entry)
		reusable.Header.Set("Cache-Status", rfc9211.New(c.name).Hit().Key(primaryKey).String())
		return pipeline.Resolve(reusable, false), nil
	}

	status := rfc9211.New(c.name).Forward(fwdReason).Key(primaryKey)
	reusable.Header.Set("Cache-Status", status.String())

	if rfc9111.IsStaleWhileRevalidate(storedRes, entry.RequestTime, entry.ResponseTime) {
		return pipeline.ResolveAndNext(validationReq, reusable, false), nil
	}
	reusable.Body.Close()
	return pipeline.Next(validationReq), nil
}

func (c *Cache) OnResponse(ctx context.Context, res *http.Response) (pipeline.ResponseOutcome, error) {
	req := res.Request
	if req == nil {
		c.log.Warn().Msg("cache: response stage got a response with no associated request")
		return pipeline.NextResponse(res), nil
	}
	if req.Method != http.MethodGet {
		return pipeline.NextResponse(res), nil
	}
	if strings.Contains(res.Header.Get("Cache-Status"), c.name+"; hit") {
		return pipeline.NextResponse(res), nil
	}

	cc := rfc9111.ParseCacheControl(res.Header.Values("Cache-Control"))
	if c.shared && cc.HasDirective("private") {
		return pipeline.NextResponse(res), nil
	}
	if cc.HasDirective("no-store") {
		return pipeline.NextResponse(res), nil
	}
	if varyContainsStar(res.Header.Values("Vary")) {
		return pipeline.NextResponse(res), nil
	}

	if res.StatusCode == http.StatusNotModified {
		return c.handleNotModified(req, res)
	}
	if res.StatusCode != http.StatusOK {
		return pipeline.NextResponse(res), nil
	}
	if rfc9111.MustNotStore(req, res, c.shared) {
		return pipeline.NextResponse(res), nil
	}

	return c.store(req, res)
}

func (c *Cache) OnError(ctx context.Context, req *http.Request, err error) (pipeline.ErrorOutcome, error) {
	if req.Method != http.MethodGet {
		return pipeline.NextError(req, err, ""), nil
	}

	primaryKey := PrimaryKey(req)
	entry, ok := c.findMatch(primaryKey, req)
	if !ok {
		return pipeline.NextError(req, err, ""), nil
	}

	body, blobErr := c.blobs.Get(entry.SecondaryKey, digest.Digest(entry.BodyDigest))
	if blobErr != nil {
		return pipeline.NextError(req, err, ""), nil
	}

	storedRes := c.buildStoredResponse(entry, body)
	if !rfc9111.IsStaleIfError(storedRes, entry.RequestTime, entry.ResponseTime) {
		body.Close()
		return pipeline.NextError(req, err, ""), nil
	}

	storedRes.Request = req
	storedRes.Header.Set("Cache-Status", rfc9211.New(c.name).Hit().Key(primaryKey).Detail("stale-if-error").String())
	return pipeline.ResolveError(storedRes), nil
}

func (c *Cache) handleNotModified(req *http.Request, res *http.Response) (pipeline.ResponseOutcome, error) {
	primaryKey := PrimaryKey(req)
	entry, ok := c.findMatch(primaryKey, req)
	if !ok {
		return pipeline.NextResponse(res), nil
	}

	for _, field := range overlayOn304 {
		if v := res.Header.Get(field); v != "" {
			entry.Header.Set(field, v)
		}
	}
	entry.Touch(time.Now())
	if err := c.journal.Put(entry); err != nil {
		c.log.Error().Err(err).Msg("cache: failed to persist revalidated entry")
	}

	body, err := c.blobs.Get(entry.SecondaryKey, digest.Digest(entry.BodyDigest))
	if err != nil {
		c.log.Warn().Err(err).Str("key", entry.SecondaryKey).Msg("cache: body blob unavailable after revalidation")
		return pipeline.NextResponse(res), nil
	}
	replayed := c.buildStoredResponse(entry, body)
	replayed.Request = req
	replayed.Header.Set("Cache-Status", rfc9211.New(c.name).Hit().Key(primaryKey).Detail("revalidated").String())
	return pipeline.ResolveResponse(replayed), nil
}

func (c *Cache) store(req *http.Request, res *http.Response) (pipeline.ResponseOutcome, error) {
	client, observer := pipeline.TeeBody(res.Body)
	res.Body = client

	primaryKey := PrimaryKey(req)
	varyHeader := res.Header.Values("Vary")
	secondaryKey := SecondaryKey(req, varyHeader)

	var previousHitCount int64
	if prev, ok := c.journal.Get(primaryKey, secondaryKey); ok {
		previousHitCount = prev.HitCount
	}

	now := time.Now()
	varySnapshot := make(http.Header)
	for _, pair := range rfc9111.VaryKeys(req, varyHeader) {
		if i := strings.IndexByte(pair, ':'); i >= 0 {
			varySnapshot.Set(pair[:i], pair[i+1:])
		}
	}

	entry := &Entry{
		PrimaryKey:     primaryKey,
		SecondaryKey:   secondaryKey,
		URL:            req.URL.String(),
		CreatedAt:      now,
		StatusCode:     res.StatusCode,
		ReasonPhrase:   reasonPhrase(res),
		Header:         res.Header.Clone(),
		ContentLength:  res.ContentLength,
		VaryHeader:     varyHeader,
		VarySnapshot:   varySnapshot,
		RequestTime:    now,
		ResponseTime:   now,
		HitCount:       previousHitCount,
		LastAccessedAt: now,
	}

	go c.writeThrough(entry, observer)

	res.Header.Set("Cache-Status", rfc9211.New(c.name).Forward(rfc9211.FwdReasonUriMiss).ForwardStatus(res.StatusCode).Key(primaryKey).String())
	return pipeline.NextResponse(res), nil
}

type writeResult struct {
	digest digest.Digest
	size   int64
}

// writeThrough persists the tee'd body to the blob store and, on success,
// the entry to the journal, then triggers eviction. Concurrent writes to
// the same secondary key are collapsed via singleflight: only the first
// writer's bytes are actually persisted, and followers reuse its result.
func (c *Cache) writeThrough(entry *Entry, body io.ReadCloser) {
	res, err, _ := c.writes.Do(entry.SecondaryKey, func() (interface{}, error) {
		dgst, n, err := c.blobs.Put(entry.SecondaryKey, body)
		return writeResult{digest: dgst, size: n}, err
	})
	body.Close()

	if err != nil {
		c.log.Error().Err(err).Str("key", entry.SecondaryKey).Msg("cache: writer failure, not persisting entry")
		c.blobs.Delete(entry.SecondaryKey)
		return
	}

	wr := res.(writeResult)
	entry.PersistedResponseSize = wr.size
	entry.BodyDigest = wr.digest.String()

	if err := c.journal.Put(entry); err != nil {
		c.log.Error().Err(err).Str("key", entry.SecondaryKey).Msg("cache: journal write failed")
		return
	}
	c.evictor.EvictIfNeeded()
}

func (c *Cache) findMatch(primaryKey string, req *http.Request) (*Entry, bool) {
	for _, e := range c.journal.Variants(primaryKey) {
		if SecondaryKey(req, e.VaryHeader) == e.SecondaryKey {
			return e, true
		}
	}
	return nil, false
}

func (c *Cache) purge(entry *Entry) {
	if err := c.blobs.Delete(entry.SecondaryKey); err != nil {
		c.log.Error().Err(err).Str("key", entry.SecondaryKey).Msg("cache: failed to delete orphaned blob")
	}
	if err := c.journal.Delete(entry.PrimaryKey, entry.SecondaryKey); err != nil {
		c.log.Error().Err(err).Str("key", entry.SecondaryKey).Msg("cache: failed to delete journal entry")
	}
}

func (c *Cache) buildStoredResponse(entry *Entry, body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode:    entry.StatusCode,
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, entry.ReasonPhrase),
		Header:        entry.Header.Clone(),
		ContentLength: entry.ContentLength,
		Body:          body,
	}
}

func reasonPhrase(res *http.Response) string {
	if res.Status == "" {
		return http.StatusText(res.StatusCode)
	}
	prefix := fmt.Sprintf("%d", res.StatusCode)
	return strings.TrimSpace(strings.TrimPrefix(res.Status, prefix))
}

func varyContainsStar(values []string) bool {
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) == "*" {
				return true
			}
		}
	}
	return false
}
