package rfc9111

import (
	"net/http"
	"time"
)

// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.
func getExpires(res *http.Response) (time.Time, error) {
	if exp, err := HttpDate(res.Header.Get("Expires")); err == nil {
		return exp, err
	} else {
		return time.Time{}, err
	}
}

// GetExpiration returns the current time plus the freshness lifetime of res
// (per the rules of §4.2.1); the response's current age is not subtracted.
// The zero value means no explicit expiration was computed.
func GetExpiration(res *http.Response) time.Time {
	if ttl := freshness_lifetime(res); ttl != 0 {
		return time.Now().Add(ttl)
	}
	return time.Time{}
}

// §  4.2.1.  Calculating Freshness Lifetime
// §
// §     A cache can calculate the freshness lifetime by evaluating the
// §     following rules and using the first match:
// §
// §     *  If the cache is shared and the s-maxage response directive is
// §        present, use its value, or
// §     *  If the max-age response directive is present, use its value, or
// §     *  If the Expires response header field is present, use its value
// §        minus the value of the Date response header field, or
// §     *  Otherwise, no explicit expiration time is present.
//
// s-maxage is applied whether or not the cache is shared.
func freshness_lifetime(res *http.Response) time.Duration {
	resCacheControl := ParseCacheControl(res.Header.Values("Cache-Control"))
	if val, ok := resCacheControl.SMaxAge(); ok {
		return val
	}
	if val, ok := resCacheControl.MaxAge(); ok {
		return val
	}
	if expires, err := getExpires(res); err == nil {
		// assumes Date is stored as the current date if missing upstream
		if date, err := HttpDate(res.Header.Get("Date")); err == nil {
			return expires.Sub(date)
		}
	}
	return 0
}

// §  4.2.  Freshness
// §
// §     response_is_fresh = (freshness_lifetime > current_age)
func isFresh(res *http.Response, requestTime, responseTime time.Time) bool {
	return freshness_lifetime(res) > current_age(res, requestTime, responseTime)
}

// NeedsRevalidation reports whether res must be revalidated before reuse:
// it is stale, or carries "no-cache" - unless it is both fresh and marked
// "immutable", which suppresses revalidation even under "no-cache".
// "must-revalidate" forces revalidation once stale, spelled out explicitly
// even though that coincides with the default staleness rule.
func NeedsRevalidation(res *http.Response, requestTime, responseTime time.Time) bool {
	cc := ParseCacheControl(res.Header.Values("Cache-Control"))
	fresh := isFresh(res, requestTime, responseTime)

	if fresh && cc.HasDirective("immutable") {
		return false
	}
	if cc.HasDirective("no-cache") {
		return true
	}
	if cc.HasDirective("must-revalidate") && !fresh {
		return true
	}
	return !fresh
}

// IsStaleWhileRevalidate reports whether res is within its
// stale-while-revalidate window (RFC 5861 §3): stale, but the time elapsed
// since it became stale is still within the declared allowance.
func IsStaleWhileRevalidate(res *http.Response, requestTime, responseTime time.Time) bool {
	cc := ParseCacheControl(res.Header.Values("Cache-Control"))
	swr, ok := cc.StaleWhileRevalidate()
	if !ok {
		return false
	}
	overage := current_age(res, requestTime, responseTime) - freshness_lifetime(res)
	return overage > 0 && overage <= swr
}

// RemainingFreshness reports how long until res becomes stale (negative
// once it already has). Used by the cache warmer to find entries nearing
// expiry without waiting for a request to discover it.
func RemainingFreshness(res *http.Response, requestTime, responseTime time.Time) time.Duration {
	return freshness_lifetime(res) - current_age(res, requestTime, responseTime)
}

// IsStaleIfError reports whether res may be served from cache on origin
// error (RFC 5861 §4): stale, but within the declared allowance.
func IsStaleIfError(res *http.Response, requestTime, responseTime time.Time) bool {
	cc := ParseCacheControl(res.Header.Values("Cache-Control"))
	sie, ok := cc.StaleIfError()
	if !ok {
		return false
	}
	overage := current_age(res, requestTime, responseTime) - freshness_lifetime(res)
	return overage > 0 && overage <= sie
}
