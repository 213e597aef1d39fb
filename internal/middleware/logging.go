package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseRecorder wraps http.ResponseWriter to capture the status code
// and the number of body bytes written.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// actorStamp is filled in by RequireAuth after it validates the session,
// so the access log can attribute a request to a caregiver even though
// authentication runs inside the mux, after RequestLogger.
type actorStamp struct {
	userID    int64
	sessionID int64
}

type actorStampKey struct{}

func stampActor(ctx context.Context, userID, sessionID int64) {
	if stamp, ok := ctx.Value(actorStampKey{}).(*actorStamp); ok {
		stamp.userID = userID
		stamp.sessionID = sessionID
	}
}

// RequestLogger logs each request with method, path, status, duration,
// size, client IP, and the acting caregiver when the request carried a
// valid session. Health probes are demoted to debug so they do not drown
// the log.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			stamp := &actorStamp{}
			r = r.WithContext(context.WithValue(r.Context(), actorStampKey{}, stamp))

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", rec.bytes),
				slog.String("remote", RealIP(r)),
			}
			if stamp.userID != 0 {
				attrs = append(attrs,
					slog.Int64("user_id", stamp.userID),
					slog.Int64("session_id", stamp.sessionID),
				)
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			case r.URL.Path == "/health":
				level = slog.LevelDebug
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}
