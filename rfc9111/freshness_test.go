package rfc9111

import (
	"net/http"
	"testing"
	"time"
)

func TestNeedsRevalidationFreshResponse(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60")

	if NeedsRevalidation(res, now, now) {
		t.Fatal("expected a fresh response not to need revalidation")
	}
}

func TestNeedsRevalidationHonorsNoCache(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60, no-cache")

	if !NeedsRevalidation(res, now, now) {
		t.Fatal("expected no-cache to force revalidation even while fresh")
	}
}

func TestNeedsRevalidationStaleResponse(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1")

	if !NeedsRevalidation(res, past, past) {
		t.Fatal("expected a stale response to need revalidation")
	}
}

func TestIsStaleWhileRevalidateWithinWindow(t *testing.T) {
	requestTime := time.Now().Add(-5 * time.Second)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1, stale-while-revalidate=30")

	if !IsStaleWhileRevalidate(res, requestTime, requestTime) {
		t.Fatal("expected response within the stale-while-revalidate window to qualify")
	}
}

func TestIsStaleWhileRevalidateOutsideWindow(t *testing.T) {
	requestTime := time.Now().Add(-time.Hour)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1, stale-while-revalidate=30")

	if IsStaleWhileRevalidate(res, requestTime, requestTime) {
		t.Fatal("expected response far past the stale-while-revalidate window to not qualify")
	}
}

func TestIsStaleIfErrorWithinWindow(t *testing.T) {
	requestTime := time.Now().Add(-5 * time.Second)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1, stale-if-error=30")

	if !IsStaleIfError(res, requestTime, requestTime) {
		t.Fatal("expected response within the stale-if-error window to qualify")
	}
}

func TestIsStaleIfErrorNotStale(t *testing.T) {
	requestTime := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60, stale-if-error=30")

	if IsStaleIfError(res, requestTime, requestTime) {
		t.Fatal("expected a still-fresh response not to qualify for stale-if-error")
	}
}

func TestRemainingFreshnessPositiveBeforeExpiry(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60")

	remaining := RemainingFreshness(res, now, now)
	if remaining <= 0 || remaining > 60*time.Second {
		t.Fatalf("remaining = %v", remaining)
	}
}

func TestRemainingFreshnessNegativeAfterExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1")

	if remaining := RemainingFreshness(res, past, past); remaining >= 0 {
		t.Fatalf("expected negative remaining freshness for an expired response, got %v", remaining)
	}
}

func TestGetExpirationFromMaxAge(t *testing.T) {
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=120")

	exp := GetExpiration(res)
	if exp.IsZero() {
		t.Fatal("expected a non-zero expiration")
	}
	if until := time.Until(exp); until <= 0 || until > 120*time.Second {
		t.Fatalf("expiration too far off: %v", until)
	}
}

func TestGetExpirationZeroWithoutSignal(t *testing.T) {
	res := &http.Response{Header: make(http.Header)}
	if exp := GetExpiration(res); !exp.IsZero() {
		t.Fatalf("expected zero expiration without any freshness signal, got %v", exp)
	}
}

func TestNeedsRevalidationImmutableSuppressesNoCache(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60, no-cache, immutable")

	if NeedsRevalidation(res, now, now) {
		t.Fatal("expected a fresh immutable response not to need revalidation even with no-cache present")
	}
}

func TestNeedsRevalidationImmutableDoesNotSuppressStaleness(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1, immutable")

	if !NeedsRevalidation(res, past, past) {
		t.Fatal("expected immutable to not suppress revalidation once actually stale")
	}
}

func TestNeedsRevalidationMustRevalidateOnceStale(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=1, must-revalidate")

	if !NeedsRevalidation(res, past, past) {
		t.Fatal("expected must-revalidate to force revalidation once stale")
	}
}

func TestNeedsRevalidationMustRevalidateFreshOK(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=60, must-revalidate")

	if NeedsRevalidation(res, now, now) {
		t.Fatal("expected must-revalidate not to force revalidation while still fresh")
	}
}
