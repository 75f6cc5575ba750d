package rfc9111

import (
	"net/http"
	"time"

	"github.com/ericselin/httpintercept/rfc9211"
)

// §  4.  Constructing Responses from Caches
// §
// §     ConstructReusableResponse returns a response that can be sent
// §     downstream, if the stored response may be used to satisfy req. It
// §     returns a nil response only when req's method requires write-through
// §     (reason "method"); for other misses (uri-miss, vary-miss) it returns
// §     the stored response with that reason and no validation request. If the
// §     response may be used only after validation, it also returns a
// §     conditional request to send to the origin; a 304 response to that
// §     request means the stored response may be used as-is, any other
// §     response must replace it.
func ConstructReusableResponse(req *http.Request, storedReq *http.Request, res *http.Response, requestTime, responseTime time.Time) (*http.Response, *http.Request, rfc9211.FwdReason) {
	if mustWriteThrough(req) {
		return nil, nil, rfc9211.FwdReasonMethod
	}
	fwdReason, validationRequest := mustNotReuse(req, storedReq, res, requestTime, responseTime)
	return constructResponse(res, requestTime, responseTime), validationRequest, fwdReason
}

// mustNotReuse reports the forward reason if a stored response MUST NOT be
// used without validation. A non-nil validation request means the response
// may still be used if that request is answered with 304 Not Modified.
func mustNotReuse(req, storedReq *http.Request, res *http.Response, requestTime, responseTime time.Time) (rfc9211.FwdReason, *http.Request) {
	if req.URL.String() != storedReq.URL.String() {
		return rfc9211.FwdReasonUriMiss, nil
	}
	if !headerFieldsMatch(req, storedReq, res) {
		return rfc9211.FwdReasonVaryMiss, nil
	}

	if !NeedsRevalidation(res, requestTime, responseTime) {
		return "", nil
	}
	return rfc9211.FwdReasonStale, generateConditionalRequest(req, res)
}

// generateConditionalRequest builds the validation request for a stale or
// no-cache stored response, per §4.3.1: send ETag-derived If-None-Match and
// Last-Modified-derived If-Modified-Since preconditions when available.
func generateConditionalRequest(req *http.Request, res *http.Response) *http.Request {
	validation := GetForwardRequest(req)
	if etag := res.Header.Get("ETag"); etag != "" {
		validation.Header.Set("If-None-Match", etag)
	}
	if lastModified := res.Header.Get("Last-Modified"); lastModified != "" {
		validation.Header.Set("If-Modified-Since", lastModified)
	}
	return validation
}

func constructResponse(storedResponse *http.Response, requestTime, responseTime time.Time) *http.Response {
	res := &http.Response{
		StatusCode: storedResponse.StatusCode,
		Header:     storedResponse.Header.Clone(),
		Body:       storedResponse.Body,
	}
	AddAgeHeader(res, requestTime, responseTime)
	return res
}

// §     A cache MUST write through requests with methods that are unsafe to
// §     the origin server.
func mustWriteThrough(req *http.Request) bool {
	return UnsafeRequest(req)
}
