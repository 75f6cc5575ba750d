package pipeline

import "net/http"

// RequestOutcome is the result of an interceptor's request-stage handler.
// It is a closed sum type: the only implementations live in this file and
// are constructed by Next, Resolve, ResolveAndNext, and Reject.
type RequestOutcome interface {
	requestOutcome()
}

// ResponseOutcome is the result of an interceptor's response-stage handler.
type ResponseOutcome interface {
	responseOutcome()
}

// ErrorOutcome is the result of an interceptor's error-stage handler.
type ErrorOutcome interface {
	errorOutcome()
}

type requestNext struct{ request *http.Request }
type requestResolve struct {
	response             *http.Response
	skipResponseStages   bool
}
type requestResolveAndNext struct {
	request              *http.Request
	response             *http.Response
	skipResponseStages   bool
}
type requestReject struct {
	err      error
	skipErrorStages bool
}

func (requestNext) requestOutcome()           {}
func (requestResolve) requestOutcome()        {}
func (requestResolveAndNext) requestOutcome() {}
func (requestReject) requestOutcome()         {}

// Next continues to the next request-stage interceptor with the (possibly
// rewritten) request.
func Next(request *http.Request) RequestOutcome {
	return requestNext{request: request}
}

// Resolve answers the pipeline call with response without ever invoking
// the transport. If skipResponseStages is true, the call returns response
// at once. Otherwise the remaining request-stage interceptors still run
// (any of them may still reject or resolve with another response), and
// then the response stage runs over the resolved response.
func Resolve(response *http.Response, skipResponseStages bool) RequestOutcome {
	return requestResolve{response: response, skipResponseStages: skipResponseStages}
}

// ResolveAndNext behaves like Resolve(response, false), but also commits to
// sending request to the transport even though a response is already
// available - used by the cache interceptor for stale-while-revalidate.
func ResolveAndNext(request *http.Request, response *http.Response, skipResponseStages bool) RequestOutcome {
	return requestResolveAndNext{request: request, response: response, skipResponseStages: skipResponseStages}
}

// Reject fails the call with err. If skipErrorStages is true, no
// error-stage interceptor runs; err is returned to the caller as-is.
func Reject(err error, skipErrorStages bool) RequestOutcome {
	return requestReject{err: err, skipErrorStages: skipErrorStages}
}

type responseNext struct{ response *http.Response }
type responseResolve struct{ response *http.Response }
type responseReject struct {
	err             error
	skipErrorStages bool
}

func (responseNext) responseOutcome()    {}
func (responseResolve) responseOutcome() {}
func (responseReject) responseOutcome()  {}

// NextResponse continues to the next response-stage interceptor with the
// (possibly rewritten) response.
func NextResponse(response *http.Response) ResponseOutcome {
	return responseNext{response: response}
}

// ResolveResponse completes the call immediately with response, skipping
// any remaining response-stage interceptors.
func ResolveResponse(response *http.Response) ResponseOutcome {
	return responseResolve{response: response}
}

// RejectResponse raises err to the error stage (unless skipErrorStages).
func RejectResponse(err error, skipErrorStages bool) ResponseOutcome {
	return responseReject{err: err, skipErrorStages: skipErrorStages}
}

type errorNext struct {
	request   *http.Request
	err       error
	stackInfo string
}
type errorResolve struct{ response *http.Response }
type errorReject struct {
	err       error
	stackInfo string
}

func (errorNext) errorOutcome()    {}
func (errorResolve) errorOutcome() {}
func (errorReject) errorOutcome()  {}

// NextError continues to the next error-stage interceptor, optionally
// replacing the request and error that later error-stage interceptors see
// and/or annotating stackInfo. The request is not sent again.
func NextError(request *http.Request, err error, stackInfo string) ErrorOutcome {
	return errorNext{request: request, err: err, stackInfo: stackInfo}
}

// ResolveError completes the call with a synthetic response, recovering
// from the error.
func ResolveError(response *http.Response) ErrorOutcome {
	return errorResolve{response: response}
}

// RejectError completes the call with the (possibly rewritten) error.
func RejectError(err error, stackInfo string) ErrorOutcome {
	return errorReject{err: err, stackInfo: stackInfo}
}
