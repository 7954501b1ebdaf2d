package logger

import (
	"net/http"
	"strings"
	"sync"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Middleware writes one access-log line per request.
type Middleware struct {
	log *zap.Logger

	quietMu    sync.RWMutex
	quietPaths map[string]struct{}
}

func NewMiddleware(l *zap.Logger) *Middleware {
	if l == nil {
		l = zap.NewNop()
	}
	return &Middleware{log: l, quietPaths: map[string]struct{}{}}
}

// AddQuietPaths stops access logging for paths such as a heartbeat.
func (m *Middleware) AddQuietPaths(paths ...string) {
	m.quietMu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			m.quietPaths[p] = struct{}{}
		}
	}
	m.quietMu.Unlock()
}

func (m *Middleware) quiet(r *http.Request) bool {
	m.quietMu.RLock()
	_, ok := m.quietPaths[r.URL.Path]
	m.quietMu.RUnlock()
	return ok
}

func (m *Middleware) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.quiet(r) {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}

			start := time.Now()
			defer func() {
				// an aborted transfer re-panics after this line is written
				m.log.Info("access",
					zap.String("dateTime", start.UTC().Format(time.RFC1123)),
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpScheme", scheme),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", time.Since(start)),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
