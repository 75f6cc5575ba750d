package rfc9111

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ericselin/httpintercept/rfc9211"
)

func freshResponse() *http.Response {
	res := &http.Response{StatusCode: 200, Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60")
	res.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	return res
}

func TestConstructReusableResponseFresh(t *testing.T) {
	u, _ := url.Parse("http://example.com/foo")
	req := &http.Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
	res := freshResponse()

	now := time.Now()
	got, validation, reason := ConstructReusableResponse(req, req, res, now, now)
	if got == nil {
		t.Fatal("expected a reusable response")
	}
	if validation != nil {
		t.Fatal("expected no validation request for a fresh response")
	}
	if reason != "" {
		t.Fatalf("expected empty forward reason, got %q", reason)
	}
}

func TestConstructReusableResponseUriMiss(t *testing.T) {
	u, _ := url.Parse("http://example.com/foo")
	u2, _ := url.Parse("http://example.com/bar")
	req := &http.Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
	storedReq := &http.Request{Method: http.MethodGet, URL: u2, Header: make(http.Header)}
	res := freshResponse()

	now := time.Now()
	_, _, reason := ConstructReusableResponse(req, storedReq, res, now, now)
	if reason != rfc9211.FwdReasonUriMiss {
		t.Fatalf("expected uri-miss, got %q", reason)
	}
}

func TestConstructReusableResponseStaleGeneratesValidation(t *testing.T) {
	u, _ := url.Parse("http://example.com/foo")
	req := &http.Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
	res := &http.Response{StatusCode: 200, Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1")
	res.Header.Set("Date", time.Now().Add(-1*time.Hour).UTC().Format(http.TimeFormat))
	res.Header.Set("ETag", `"abc"`)

	now := time.Now()
	_, validation, reason := ConstructReusableResponse(req, req, res, now, now)
	if reason != rfc9211.FwdReasonStale {
		t.Fatalf("expected stale, got %q", reason)
	}
	if validation == nil || validation.Header.Get("If-None-Match") != `"abc"` {
		t.Fatalf("expected If-None-Match validation request, got %+v", validation)
	}
}

func TestConstructReusableResponseImmutableSkipsRevalidation(t *testing.T) {
	u, _ := url.Parse("http://example.com/foo")
	req := &http.Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
	res := &http.Response{StatusCode: 200, Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60, no-cache, immutable")
	res.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	now := time.Now()
	_, validation, reason := ConstructReusableResponse(req, req, res, now, now)
	if reason != "" || validation != nil {
		t.Fatalf("expected a fresh immutable response to be reused without revalidation, got reason=%q validation=%v", reason, validation)
	}
}

func TestConstructReusableResponseWriteThrough(t *testing.T) {
	u, _ := url.Parse("http://example.com/foo")
	req := &http.Request{Method: http.MethodPost, URL: u, Header: make(http.Header)}
	res := freshResponse()

	now := time.Now()
	got, _, reason := ConstructReusableResponse(req, req, res, now, now)
	if got != nil || reason != rfc9211.FwdReasonMethod {
		t.Fatalf("expected write-through for POST, got %v %q", got, reason)
	}
}
