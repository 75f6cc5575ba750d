// Package rfc9211 implements the Cache-Status response header field
// defined by RFC 9211, used to report how a cache handled a request.
package rfc9211

import (
	"fmt"
	"strconv"
	"strings"
)

// FwdReason is the value of the "fwd" Cache-Status parameter, §2.2.
type FwdReason string

const (
	// FwdReasonBypass means the cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"
	// FwdReasonMethod means the request method's semantics require the request
	// to be forwarded.
	FwdReasonMethod FwdReason = "method"
	// FwdReasonUriMiss means no stored response matched the request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// FwdReasonVaryMiss means a stored response matched the request URI but
	// couldn't be used due to the request's Vary-nominated fields.
	FwdReasonVaryMiss FwdReason = "vary-miss"
	// FwdReasonMiss means there was no state whatsoever for this request.
	FwdReasonMiss FwdReason = "miss"
	// FwdReasonRequest means the client requested that the cache not use the
	// stored response.
	FwdReasonRequest FwdReason = "request"
	// FwdReasonStale means the stored response was stale, or explicit
	// validation was required.
	FwdReasonStale FwdReason = "stale"
	// FwdReasonPartial means the stored response didn't contain all the
	// requested ranges.
	FwdReasonPartial FwdReason = "partial"
)

// CacheStatus builds a single member of the Cache-Status header field for
// a cache identified by name. Use Hit or Forward to set the primary
// outcome, then chain the other setters as applicable.
type CacheStatus struct {
	name      string
	hit       bool
	fwd       FwdReason
	fwdStatus int
	ttl       *int
	stored    bool
	collapsed bool
	key       string
	detail    string
}

// New starts a CacheStatus value for the cache identified by name.
func New(name string) *CacheStatus {
	return &CacheStatus{name: name}
}

// Hit marks the request as satisfied by a stored response.
func (c *CacheStatus) Hit() *CacheStatus {
	c.hit = true
	return c
}

// Forward marks the request as forwarded, for the given reason.
func (c *CacheStatus) Forward(reason FwdReason) *CacheStatus {
	c.hit = false
	c.fwd = reason
	return c
}

// ForwardStatus sets the status code returned by the forwarded request,
// §2.3.
func (c *CacheStatus) ForwardStatus(status int) *CacheStatus {
	c.fwdStatus = status
	return c
}

// TTL sets the stored response's remaining freshness lifetime in seconds,
// §2.4. A negative value indicates a stale response.
func (c *CacheStatus) TTL(seconds int) *CacheStatus {
	c.ttl = &seconds
	return c
}

// Stored marks that the response was stored as a result of the request,
// §2.5.
func (c *CacheStatus) Stored() *CacheStatus {
	c.stored = true
	return c
}

// Collapsed marks that the request was collapsed with another, §2.6.
func (c *CacheStatus) Collapsed() *CacheStatus {
	c.collapsed = true
	return c
}

// Key sets the cache key used for the request, §2.7.
func (c *CacheStatus) Key(key string) *CacheStatus {
	c.key = key
	return c
}

// Detail sets free-text implementation-specific information, §2.8.
func (c *CacheStatus) Detail(detail string) *CacheStatus {
	c.detail = detail
	return c
}

// String renders the CacheStatus as a single Cache-Status member, e.g.
// `MyCache; hit; ttl=376` or `MyCache; fwd=uri-miss; collapsed`.
func (c *CacheStatus) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", c.name)
	if c.hit {
		b.WriteString("; hit")
	} else if c.fwd != "" {
		fmt.Fprintf(&b, "; fwd=%s", c.fwd)
		if c.fwdStatus != 0 {
			fmt.Fprintf(&b, "; fwd-status=%d", c.fwdStatus)
		}
	}
	if c.ttl != nil {
		fmt.Fprintf(&b, "; ttl=%d", *c.ttl)
	}
	if c.stored {
		b.WriteString("; stored")
	}
	if c.collapsed {
		b.WriteString("; collapsed")
	}
	if c.key != "" {
		fmt.Fprintf(&b, "; key=%s", strconv.Quote(c.key))
	}
	if c.detail != "" {
		fmt.Fprintf(&b, "; detail=%s", strconv.Quote(c.detail))
	}
	return b.String()
}
