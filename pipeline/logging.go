package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggingInterceptor emits one structured log line per request, tagged
// with the stable request ID stamped by the Engine. It is illustrative:
// applications are free to write their own, but this is the one shipped
// alongside the engine.
type LoggingInterceptor struct {
	Base
	log zerolog.Logger
}

// NewLoggingInterceptor returns a LoggingInterceptor that writes to log.
func NewLoggingInterceptor(log zerolog.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{log: log}
}

type loggingStartKey struct{}

func (l *LoggingInterceptor) OnRequest(ctx context.Context, req *http.Request) (RequestOutcome, error) {
	started := time.Now()
	l.log.Info().
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("request started")
	return Next(req.WithContext(context.WithValue(req.Context(), loggingStartKey{}, started))), nil
}

func (l *LoggingInterceptor) OnResponse(ctx context.Context, res *http.Response) (ResponseOutcome, error) {
	var elapsed time.Duration
	if started, ok := res.Request.Context().Value(loggingStartKey{}).(time.Time); ok {
		elapsed = time.Since(started)
	}
	l.log.Info().
		Str("request_id", res.Request.Header.Get(RequestIDHeader)).
		Int("status", res.StatusCode).
		Dur("elapsed", elapsed).
		Str("cache_status", res.Header.Get("Cache-Status")).
		Msg("request completed")
	return NextResponse(res), nil
}

func (l *LoggingInterceptor) OnError(ctx context.Context, req *http.Request, err error) (ErrorOutcome, error) {
	l.log.Warn().
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Err(err).
		Msg("request failed")
	return NextError(req, err, ""), nil
}
