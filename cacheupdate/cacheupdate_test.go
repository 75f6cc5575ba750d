package cacheupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ericselin/httpintercept/pipeline"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRefresher) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL.String())
	return &http.Response{StatusCode: 200}, nil
}

func (f *fakeRefresher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestOnResponseIgnoresSafeMethods(t *testing.T) {
	ref := &fakeRefresher{}
	i := New(ref)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	res := &http.Response{Request: req, Header: make(http.Header)}
	res.Header.Add("Cache-Update", "/y")

	if _, err := i.OnResponse(context.Background(), res); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(ref.called()) != 0 {
		t.Fatal("expected no refresh for a GET-triggered response")
	}
}

func TestOnResponseSchedulesImmediateRefresh(t *testing.T) {
	ref := &fakeRefresher{}
	i := New(ref)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/update", nil)
	res := &http.Response{Request: req, Header: make(http.Header)}
	res.Header.Add("Cache-Update", "/count")

	if _, err := i.OnResponse(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(ref.called()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	calls := ref.called()
	if len(calls) != 1 || calls[0] != "http://example.com/count" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestOnResponseHonorsDelayDirective(t *testing.T) {
	ref := &fakeRefresher{}
	i := New(ref)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/update", nil)
	res := &http.Response{Request: req, Header: make(http.Header)}
	res.Header.Add("Cache-Update", "/slow;delay=1")

	if _, err := i.OnResponse(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if len(ref.called()) != 0 {
		t.Fatal("expected the delayed refresh not to have fired yet")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(ref.called()) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected the delayed refresh to fire eventually")
}

func TestOnResponseIgnoresUpdateBeforeBind(t *testing.T) {
	i := New(nil)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/update", nil)
	res := &http.Response{Request: req, Header: make(http.Header)}
	res.Header.Add("Cache-Update", "/count")

	if _, err := i.OnResponse(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	ref := &fakeRefresher{}
	i.Bind(ref)

	req2 := httptest.NewRequest(http.MethodPost, "http://example.com/update", nil)
	res2 := &http.Response{Request: req2, Header: make(http.Header)}
	res2.Header.Add("Cache-Update", "/count")
	if _, err := i.OnResponse(context.Background(), res2); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(ref.called()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected refresh to fire after Bind")
}

var _ pipeline.Interceptor = (*Interceptor)(nil)
