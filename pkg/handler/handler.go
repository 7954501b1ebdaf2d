// pkg/handler/handler.go
package handler

import (
	"context"
	"errors"
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-handoff/pkg/registry"
	"github.com/joeydtaylor/steeze-handoff/pkg/stream"
	"go.uber.org/zap"
)

// DefaultBodyBuffer is the number of chunks buffered between pump and response.
const DefaultBodyBuffer = 4

// Dispatcher hands out registered entries; *registry.Actor implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, body chan<- stream.Chunk) (registry.Disposition, error)
}

// Handler serves registered files. Every request, whatever its method, is a
// dispatch of r.URL.Path.
type Handler struct {
	d          Dispatcher
	log        *zap.Logger
	bodyBuffer int
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithBodyBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.bodyBuffer = n
		}
	}
}

func New(d Dispatcher, opts ...Option) *Handler {
	h := &Handler{d: d, log: zap.NewNop(), bodyBuffer: DefaultBodyBuffer}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	body := make(chan stream.Chunk, h.bodyBuffer)

	// The pump lives as long as this request; leaving ServeHTTP early stops it.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	disp, err := h.d.Dispatch(ctx, path, body)
	if err != nil {
		h.log.Error("dispatch failed",
			zap.String("requestId", chimd.GetReqID(r.Context())),
			zap.String("path", path),
			zap.Error(err),
		)
		if errors.Is(err, context.Canceled) {
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !disp.Found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Disposition", ContentDisposition(disp.Name))
	hdr.Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for c := range body {
		if c.Err != nil {
			h.log.Error("aborting response",
				zap.String("requestId", chimd.GetReqID(r.Context())),
				zap.String("path", path),
				zap.Error(c.Err),
			)
			// no clean end of body: the client must see a broken transfer
			panic(http.ErrAbortHandler)
		}
		if _, err := w.Write(c.Data); err != nil {
			// client gone
			return
		}
		_ = rc.Flush()
	}
}
