package stagepage

import (
	"net"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"

	"github.com/stagepage/stagepage/pkg/tracking"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an id, stores a request scoped
// logger in the context and logs the outcome once the handler returns.
func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)

		log := a.log.With().Str("requestId", id).Logger()
		r = r.WithContext(log.WithContext(r.Context()))

		m := httpsnoop.CaptureMetrics(next, w, r)

		ev := log.Info()
		if m.Code >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ip := tracking.ClientIP(r)
		if ip == "" {
			ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", m.Duration).
			Str("ip", ip).
			Msg("handled")
	})
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         3600,
	})
}
