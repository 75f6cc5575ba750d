// Package cacheupdate implements the Cache-Update response header: a
// response to an unsafe request can name further URLs to eagerly refresh,
// optionally after a delay. Off by default; the core cache interceptor
// only invalidates.
package cacheupdate

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ericselin/httpintercept/pipeline"
	"github.com/ericselin/httpintercept/rfc9111"
)

var delayDirective = regexp.MustCompile(`(?i)\bdelay=(\d+)`)

// Refresher performs the GET that warms an entry. pipeline.Engine satisfies
// this directly via its Do method.
type Refresher interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// update is one parsed Cache-Update directive: a path to re-fetch, and how
// long to wait before doing it.
type update struct {
	url   *url.URL
	delay time.Duration
}

// Interceptor consumes Cache-Update response headers on unsafe-method
// responses and schedules a refresh GET for each named URL.
type Interceptor struct {
	pipeline.Base

	refresher Refresher
	log       zerolog.Logger
}

type Option func(*Interceptor)

func WithLogger(log zerolog.Logger) Option { return func(i *Interceptor) { i.log = log } }

// New builds a Cache-Update interceptor. refresher may be nil if the engine
// it will run inside does not exist yet - the engine has to exist before it
// can be handed back to the interceptor that runs inside it. Call Bind once
// the engine is constructed; OnResponse is a no-op until then.
func New(refresher Refresher, opts ...Option) *Interceptor {
	i := &Interceptor{refresher: refresher, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Bind sets the Refresher used to issue scheduled refresh requests. Use it
// to close the construction loop: build the Interceptor with a nil
// Refresher, install it in the Engine's interceptor list, then Bind the
// Engine itself once it exists.
func (i *Interceptor) Bind(refresher Refresher) {
	i.refresher = refresher
}

func (i *Interceptor) OnResponse(ctx context.Context, res *http.Response) (pipeline.ResponseOutcome, error) {
	if res.Request == nil || !rfc9111.UnsafeRequest(res.Request) {
		return pipeline.NextResponse(res), nil
	}

	values := res.Header.Values("Cache-Update")
	if len(values) == 0 {
		return pipeline.NextResponse(res), nil
	}

	if i.refresher == nil {
		i.log.Warn().Msg("cacheupdate: received Cache-Update header before a refresher was bound, ignoring")
		return pipeline.NextResponse(res), nil
	}

	for _, raw := range values {
		u := parseUpdate(res.Request, raw)
		i.schedule(u)
	}

	return pipeline.NextResponse(res), nil
}

func (i *Interceptor) schedule(u update) {
	refresher := i.refresher
	run := func() {
		req, err := http.NewRequest(http.MethodGet, u.url.String(), nil)
		if err != nil {
			i.log.Error().Err(err).Str("url", u.url.String()).Msg("cacheupdate: could not build refresh request")
			return
		}
		if _, err := refresher.Do(context.Background(), req); err != nil {
			i.log.Warn().Err(err).Str("url", u.url.String()).Msg("cacheupdate: refresh failed")
		}
	}

	if u.delay > 0 {
		time.AfterFunc(u.delay, run)
		return
	}
	go run()
}

// parseUpdate splits one Cache-Update directive: the path is the first
// semicolon-separated element, resolved against the triggering request's
// URL; a delay=N directive (seconds) may follow.
func parseUpdate(triggeringReq *http.Request, raw string) update {
	path := raw
	if i := strings.Index(raw, ";"); i != -1 {
		path = raw[:i]
	}
	resolved := triggeringReq.URL.ResolveReference(&url.URL{Path: path})

	var delay time.Duration
	if m := delayDirective.FindStringSubmatch(raw); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			delay = time.Duration(secs) * time.Second
		}
	}

	return update{url: resolved, delay: delay}
}
