package rfc9111

import (
	"net/http"
	"strings"
)

// UnsafeRequest reports whether req uses a method that is not safe per
// RFC 9110 §9.2.1 (GET, HEAD, OPTIONS and TRACE are safe).
func UnsafeRequest(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// §  3.1.  Storing Header and Trailer Fields
// §
// §     Caches MUST include all received response header fields when storing
// §     a response, with a small set of exceptions: hop-by-hop fields named
// §     or implied by Connection, and proxy-specific fields.
func storableHeader(header http.Header) http.Header {
	if header == nil {
		return nil
	}
	h := header.Clone()
	for _, field := range GetListHeader(header, "Connection") {
		h.Del(field)
	}
	h.Del("Connection")
	h.Del("Proxy-Connection")
	h.Del("Keep-Alive")
	h.Del("TE")
	h.Del("Transfer-Encoding")
	h.Del("Upgrade")
	return h
}

// §     Caches MAY either store trailer fields separate from header fields or
// §     discard them. Caches MUST NOT combine trailer fields with header
// §     fields.
func storableTrailer(trailer http.Header) http.Header {
	return make(http.Header)
}

// GetListHeader splits a comma-separated header field into its members.
func GetListHeader(header http.Header, field string) []string {
	list := make([]string, 0)
	for _, hdr := range header.Values(field) {
		for _, item := range strings.Split(hdr, ",") {
			list = append(list, strings.TrimSpace(item))
		}
	}
	return list
}

// GetForwardRequest clones req with hop-by-hop fields stripped, suitable
// for forwarding to an origin or validation target.
func GetForwardRequest(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	for _, field := range GetListHeader(r.Header, "Connection") {
		r.Header.Del(field)
	}
	r.Header.Del("Connection")
	r.Header.Del("Proxy-Connection")
	r.Header.Del("Keep-Alive")
	r.Header.Del("TE")
	r.Header.Del("Transfer-Encoding")
	r.Header.Del("Upgrade")
	return r
}

// §  3.5.  Storing Responses to Authenticated Requests
func mayUseResponseForAuthenticatedRequest(resCacheControl CacheControl) bool {
	return resCacheControl.HasDirective("public") ||
		resCacheControl.HasDirective("must-revalidate") ||
		resCacheControl.HasDirective("s-maxage")
}

// §  3.  Storing Responses in Caches
// §
// §     A cache MUST NOT store a response to a request unless the request
// §     method is understood, the response status code is final, no-store is
// §     absent, private is absent (unless the cache is private), and
// §     Authorization is either absent or explicitly overridden.
//
// A response that carries no explicit cacheability signal (no max-age,
// Expires, public, ...) is not refused on that ground alone.
//
// shared must be true for a cache serving more than one user, per §3: a
// private (single-user) cache may store a "private" response.
func MustNotStore(req *http.Request, res *http.Response, shared bool) bool {
	resCacheControl := ParseCacheControl(res.Header.Values("Cache-Control"))

	if !requestMethodIsUnderstood(req.Method) {
		return true
	}
	if !responseStatusCodeIsFinal(res.StatusCode) {
		return true
	}
	if !statusCodeUnderstoodIfNeeded(res, resCacheControl) {
		return true
	}
	if resCacheControl.HasDirective("no-store") {
		return true
	}
	if shared && resCacheControl.HasDirective("private") {
		return true
	}
	if req.Header.Get("Authorization") != "" && !mayUseResponseForAuthenticatedRequest(resCacheControl) {
		return true
	}
	return false
}

func statusCodeUnderstoodIfNeeded(res *http.Response, resCacheControl CacheControl) bool {
	if res.StatusCode == 206 || res.StatusCode == 304 || resCacheControl.HasDirective("must-understand") {
		return responseStatusCodeIsUnderstood(res.StatusCode)
	}
	return true
}

func requestMethodIsUnderstood(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodHead:
		return true
	}
	return false
}

func responseStatusCodeIsUnderstood(statusCode int) bool {
	switch statusCode {
	case 200, 301, 404, 410:
		return true
	}
	return false
}

func responseStatusCodeIsFinal(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 599
}
