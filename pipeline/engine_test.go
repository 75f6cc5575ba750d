package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func newResponse(req *http.Request, status int) *http.Response {
	return &http.Response{StatusCode: status, Header: make(http.Header), Request: req}
}

func TestEngineForwardsThroughToTransport(t *testing.T) {
	var transportCalled bool
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		transportCalled = true
		return newResponse(req, 200), nil
	})

	e := New(transport, nil)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	res, err := e.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transportCalled {
		t.Fatal("expected transport to be called when no interceptor resolves")
	}
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		t.Fatal("expected a request ID to be stamped")
	}
}

type resolvingInterceptor struct {
	Base
	status int
}

func (r resolvingInterceptor) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	return Resolve(newResponse(req, r.status), true), nil
}

func TestEngineResolveSkipsTransport(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("transport should not be called")
		return nil, nil
	})

	e := New(transport, []Interceptor{resolvingInterceptor{status: 304}})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	res, err := e.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 304 {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

type resolveAndNextInterceptor struct{ Base }

func (r resolveAndNextInterceptor) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	return ResolveAndNext(req, newResponse(req, 200), false), nil
}

func TestEngineResolveAndNextReturnsStaleImmediatelyAndRevalidatesInBackground(t *testing.T) {
	hit := make(chan struct{}, 1)
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hit <- struct{}{}
		return newResponse(req, 200), nil
	})

	e := New(transport, []Interceptor{resolveAndNextInterceptor{}})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	res, err := e.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}

	select {
	case <-hit:
	case <-time.After(time.Second):
		t.Fatal("expected transport to be invoked in the background after ResolveAndNext")
	}
}

type rejectingInterceptor struct{ Base }

func (rejectingInterceptor) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	return Reject(errors.New("boom"), true), nil
}

func TestEngineRejectSkipsErrorStage(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("transport should not be called")
		return nil, nil
	})

	e := New(transport, []Interceptor{rejectingInterceptor{}})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	_, err := e.Do(context.Background(), req)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
}

type recoveringInterceptor struct{ Base }

func (recoveringInterceptor) OnError(ctx context.Context, req *http.Request, err error) (ErrorOutcome, error) {
	return ResolveError(newResponse(req, 503)), nil
}

func TestEngineErrorStageCanRecover(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})

	e := New(transport, []Interceptor{recoveringInterceptor{}})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	res, err := e.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 503 {
		t.Fatalf("status = %d", res.StatusCode)
	}
}
