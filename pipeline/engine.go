package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ericselin/httpintercept/pipeline/idgen"
)

// Transport is the minimal seam the engine needs from an HTTP transport.
// *http.Transport and any http.RoundTripper satisfy it.
type Transport interface {
	RoundTrip(req *http.Request) (*http.Response, error)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithReverseResponseOrder walks response-stage interceptors in the
// reverse of their declared order, so the interceptor closest to the
// transport sees the response first (mirroring the order requests were
// seen). Off by default: response stages run in declared order, same as
// request stages.
func WithReverseResponseOrder() Option {
	return func(e *Engine) { e.reverseResponse = true }
}

// WithLogger attaches a zerolog.Logger the engine uses for stage-level
// diagnostics (not request logging - use the logging interceptor for that).
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithIDGenerator sets the generator used to stamp every request with a
// request ID (X-Request-Id header and "request_id" log field) before it
// enters the first interceptor. Defaults to idgen.XID.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(e *Engine) { e.idgen = gen }
}

// Engine routes a single request through an ordered list of interceptors
// and a transport, running a request stage, a response stage, and an
// error stage across them in order.
type Engine struct {
	interceptors    []Interceptor
	transport       Transport
	reverseResponse bool
	log             zerolog.Logger
	idgen           idgen.Generator
}

const RequestIDHeader = "X-Request-Id"

// New builds an Engine over transport with the given interceptors, run in
// the order passed for the request and (by default) response stages.
func New(transport Transport, interceptors []Interceptor, opts ...Option) *Engine {
	e := &Engine{
		interceptors: interceptors,
		transport:    transport,
		log:          zerolog.Nop(),
		idgen:        idgen.XID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs req through the pipeline and returns the final response, or an
// error if every stage ultimately rejects.
//
// requestResolveAndNext is the one outcome that does not fit a single
// synchronous call: for stale-while-revalidate, the resolved (stale)
// response must reach the caller immediately while the remaining request
// stages, the transport call, and the response stage still run so the
// cache interceptor's write-through can observe the fresh response.
// Do therefore hands the remaining work to continueInBackground and
// returns the resolved response without waiting for it.
func (e *Engine) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, e.idgen.New())
	}

	current := req
	var resolved *http.Response
	var skipResponseStages bool
	sendToTransport := true

	for i, ic := range e.interceptors {
		outcome, err := ic.OnRequest(ctx, current)
		if err != nil {
			return e.runErrorStage(ctx, current, fmt.Errorf("request stage %d: %w", i, err))
		}
		switch o := outcome.(type) {
		case requestNext:
			current = o.request
		case requestResolve:
			resolved = o.response
			skipResponseStages = o.skipResponseStages
			sendToTransport = false
			if skipResponseStages {
				return resolved, nil
			}
		case requestResolveAndNext:
			e.continueInBackground(i+1, o.request, o.skipResponseStages)
			return o.response, nil
		case requestReject:
			if o.skipErrorStages {
				return nil, o.err
			}
			return e.runErrorStage(ctx, current, o.err)
		default:
			return nil, fmt.Errorf("pipeline: unknown request outcome %T", outcome)
		}
	}

	var res *http.Response
	if sendToTransport {
		var err error
		res, err = e.transport.RoundTrip(current)
		if err != nil {
			return e.runErrorStage(ctx, current, err)
		}
	} else {
		res = resolved
	}

	return e.runResponseStage(ctx, current, res)
}

// continueInBackground resumes the request-stage walk from fromIndex using
// req, then (unless a later interceptor or skipResponseStages says
// otherwise) calls the transport and runs the response stage. It runs on
// its own goroutine with a background context so caller cancellation
// can never abort an already-scheduled background revalidation.
func (e *Engine) continueInBackground(fromIndex int, req *http.Request, skipResponseStages bool) {
	go func() {
		ctx := context.Background()
		current := req
		for i := fromIndex; i < len(e.interceptors); i++ {
			outcome, err := e.interceptors[i].OnRequest(ctx, current)
			if err != nil {
				e.runErrorStage(ctx, current, fmt.Errorf("request stage %d: %w", i, err))
				return
			}
			switch o := outcome.(type) {
			case requestNext:
				current = o.request
			case requestResolve:
				if !o.skipResponseStages {
					e.runResponseStage(ctx, current, o.response)
				}
				return
			case requestResolveAndNext:
				current = o.request
				if o.skipResponseStages {
					return
				}
			case requestReject:
				if !o.skipErrorStages {
					e.runErrorStage(ctx, current, o.err)
				}
				return
			default:
				e.log.Error().Msgf("pipeline: unknown request outcome %T in background continuation", outcome)
				return
			}
		}

		res, err := e.transport.RoundTrip(current)
		if err != nil {
			e.runErrorStage(ctx, current, err)
			return
		}
		if !skipResponseStages {
			if _, err := e.runResponseStage(ctx, current, res); err != nil {
				e.log.Error().Err(err).Msg("background revalidation response stage failed")
			}
		}
	}()
}

func (e *Engine) runResponseStage(ctx context.Context, req *http.Request, res *http.Response) (*http.Response, error) {
	order := e.responseOrder()
	current := res
	for _, i := range order {
		ic := e.interceptors[i]
		outcome, err := ic.OnResponse(ctx, current)
		if err != nil {
			return e.runErrorStage(ctx, req, fmt.Errorf("response stage %d: %w", i, err))
		}
		switch o := outcome.(type) {
		case responseNext:
			current = o.response
		case responseResolve:
			return o.response, nil
		case responseReject:
			if o.skipErrorStages {
				return nil, o.err
			}
			return e.runErrorStage(ctx, req, o.err)
		default:
			return nil, fmt.Errorf("pipeline: unknown response outcome %T", outcome)
		}
	}
	return current, nil
}

func (e *Engine) responseOrder() []int {
	order := make([]int, len(e.interceptors))
	if e.reverseResponse {
		for i := range order {
			order[i] = len(e.interceptors) - 1 - i
		}
	} else {
		for i := range order {
			order[i] = i
		}
	}
	return order
}

func (e *Engine) runErrorStage(ctx context.Context, req *http.Request, err error) (*http.Response, error) {
	currentErr := err
	currentReq := req
	for i, ic := range e.interceptors {
		outcome, handlerErr := ic.OnError(ctx, currentReq, currentErr)
		if handlerErr != nil {
			e.log.Error().Err(handlerErr).Int("stage", i).Msg("error-stage interceptor itself failed")
			currentErr = handlerErr
			continue
		}
		switch o := outcome.(type) {
		case errorNext:
			currentReq = o.request
			currentErr = o.err
		case errorResolve:
			return o.response, nil
		case errorReject:
			return nil, o.err
		default:
			return nil, fmt.Errorf("pipeline: unknown error outcome %T", outcome)
		}
	}
	return nil, currentErr
}

// Close disposes every interceptor, collecting (but not stopping on) the
// first error encountered.
func (e *Engine) Close() error {
	var firstErr error
	for _, ic := range e.interceptors {
		if err := ic.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
