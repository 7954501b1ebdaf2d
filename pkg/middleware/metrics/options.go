package metrics

import (
	"net/http"
	"strings"
	"sync"
)

type pathOptions struct {
	skipMu    sync.RWMutex
	skipPaths map[string]struct{}

	normMu         sync.RWMutex
	pathNormalizer func(*http.Request) string
}

func defaultPathOptions() *pathOptions {
	return &pathOptions{
		skipPaths:      map[string]struct{}{},
		pathNormalizer: func(r *http.Request) string { return r.URL.Path },
	}
}

// AddSkipPaths excludes paths (e.g. the scrape endpoint) from HTTP metrics.
func (m *Metrics) AddSkipPaths(paths ...string) {
	m.paths.skipMu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			m.paths.skipPaths[p] = struct{}{}
		}
	}
	m.paths.skipMu.Unlock()
}

// SetPathNormalizer sets how the uri label is derived from a request.
// By default it returns r.URL.Path unchanged.
func (m *Metrics) SetPathNormalizer(fn func(*http.Request) string) {
	if fn == nil {
		return
	}
	m.paths.normMu.Lock()
	m.paths.pathNormalizer = fn
	m.paths.normMu.Unlock()
}

func (m *Metrics) isSkipPath(r *http.Request) bool {
	p := r.URL.Path
	m.paths.skipMu.RLock()
	_, ok := m.paths.skipPaths[p]
	m.paths.skipMu.RUnlock()
	return ok
}

func (m *Metrics) normalizePath(r *http.Request) string {
	m.paths.normMu.RLock()
	fn := m.paths.pathNormalizer
	m.paths.normMu.RUnlock()
	return fn(r)
}
