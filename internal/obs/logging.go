package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-cart/internal/common"
)

// NewLogger builds the process logger. format is json (default) or console.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "toko-cart").Logger()
}

// RequestLogger writes one access log line per request and stores the logger
// on the request context for hlog.FromRequest.
type RequestLogger struct {
	Logger zerolog.Logger
	// LogProbes includes /health and /metrics requests in the access log.
	LogProbes bool
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		if !l.LogProbes && isProbePath(r.URL.Path) {
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		evt := hlog.FromRequest(r).WithLevel(accessLevel(status)).
			Str("method", r.Method).
			Str("route", Route(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration_ms", duration).
			Str("request_id", middleware.GetReqID(r.Context()))
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if sid, ok := common.SessionID(r.Context()); ok && sid != "" {
			evt = evt.Str("session_id", sid)
		}
		if key := strings.TrimSpace(r.Header.Get(common.IdempotencyHeader)); key != "" {
			evt = evt.Bool("idempotent", true)
		}
		if ua := r.UserAgent(); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Str("remote_addr", r.RemoteAddr).Msg("http_request")
	})
	return hlog.NewHandler(l.Logger)(access(next))
}

func accessLevel(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
