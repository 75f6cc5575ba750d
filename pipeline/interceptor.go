package pipeline

import (
	"context"
	"net/http"
)

// Interceptor is the contract an interceptor implements. An interceptor
// that only needs to observe request or response but never resolve or
// reject can embed Base, whose handlers pass the input on unchanged, and
// implement only the relevant handler(s).
type Interceptor interface {
	// OnRequest runs during the request stage. It must return a concrete
	// RequestOutcome or an error; the engine fails the call on a nil
	// outcome with a nil error.
	OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error)
	// OnResponse runs during the response stage.
	OnResponse(ctx context.Context, res *http.Response) (ResponseOutcome, error)
	// OnError runs during the error stage.
	OnError(ctx context.Context, req *http.Request, err error) (ErrorOutcome, error)
	// Dispose releases any resources held by the interceptor (journal
	// flushing, open file handles, background goroutines). Called once when
	// the owning pipeline is closed.
	Dispose() error
}

// Base can be embedded by an interceptor that only needs to implement a
// subset of Interceptor's methods; the embedded methods forward unchanged
// and never error, so a missing handler always defaults to forwarding.
type Base struct{}

func (Base) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	return Next(req), nil
}

func (Base) OnResponse(ctx context.Context, res *http.Response) (ResponseOutcome, error) {
	return NextResponse(res), nil
}

func (Base) OnError(ctx context.Context, req *http.Request, err error) (ErrorOutcome, error) {
	return NextError(req, err, ""), nil
}

func (Base) Dispose() error { return nil }

// Func adapts a plain function into a request-stage-only Interceptor.
type Func func(ctx context.Context, req *http.Request) (RequestOutcome, error)

func (f Func) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	return f(ctx, req)
}

func (Func) OnResponse(ctx context.Context, res *http.Response) (ResponseOutcome, error) {
	return NextResponse(res), nil
}

func (Func) OnError(ctx context.Context, req *http.Request, err error) (ErrorOutcome, error) {
	return NextError(req, err, ""), nil
}

func (Func) Dispose() error { return nil }
