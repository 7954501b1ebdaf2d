package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-handoff/pkg/codec"
	"github.com/joeydtaylor/steeze-handoff/pkg/config"
	"github.com/joeydtaylor/steeze-handoff/pkg/registry"
)

type closeSpy struct {
	io.Reader
	closed atomic.Bool
}

func (c *closeSpy) Close() error { c.closed.Store(true); return nil }

func start(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	cfg.Listen = "127.0.0.1:0"
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func url(s *Server, path string) string { return fmt.Sprintf("http://%s%s", s.Addr(), path) }

func get(t *testing.T, u string) (int, http.Header, []byte) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, resp.Header, b
}

func TestServe_RegisterAndDownload(t *testing.T) {
	s, err := Serve("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	payload := bytes.Repeat([]byte("report,"), 700)
	if err := s.Registrator().Register(context.Background(), "/f", io.NopCloser(bytes.NewReader(payload)), "report.csv"); err != nil {
		t.Fatal(err)
	}

	code, hdr, body := get(t, url(s, "/f"))
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(hdr.Get("Content-Disposition"), `filename="report.csv"`) {
		t.Fatalf("Content-Disposition = %q", hdr.Get("Content-Disposition"))
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body mismatch (%d bytes)", len(body))
	}

	if code, _, _ := get(t, url(s, "/f")); code != http.StatusNotFound {
		t.Fatalf("second request status = %d", code)
	}
	if n, err := s.Pending(context.Background()); err != nil || n != 0 {
		t.Fatalf("pending = %d err=%v", n, err)
	}
}

func TestServer_ReservedEndpoints(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsPath = "/metrics"
	cfg.HeartbeatPath = "/ping"
	cfg.StatusPath = "/status"
	s := start(t, cfg)
	_ = s.Registrator().Register(context.Background(), "/waiting", io.NopCloser(strings.NewReader("w")), "w")

	_ = s.Registrator().Register(context.Background(), "/a", io.NopCloser(strings.NewReader("a")), "a")
	get(t, url(s, "/a"))
	get(t, url(s, "/gone"))

	if code, _, _ := get(t, url(s, "/ping")); code != http.StatusOK {
		t.Fatalf("heartbeat status = %d", code)
	}
	code, _, body := get(t, url(s, "/status"))
	var st statusResp
	if err := codec.JSONStrict.Unmarshal(body, &st); err != nil {
		t.Fatalf("status body %q: %v", body, err)
	}
	if code != http.StatusOK || st.Pending != 1 || st.Addr != s.Addr().String() {
		t.Fatalf("status = %d %+v", code, st)
	}

	code, _, body = get(t, url(s, "/metrics"))
	if code != http.StatusOK {
		t.Fatalf("metrics status = %d", code)
	}
	text := string(body)
	for _, want := range []string{
		`handoff_dispatches_total{outcome="found"} 1`,
		`handoff_dispatches_total{outcome="not_found"} 1`,
		`total_http_requests_to_uri{code="404",method="GET",uri="/*"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_RegistratorRejectsReservedEndpoints(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsPath = "/metrics"
	s := start(t, cfg)

	err := s.Registrator().Register(context.Background(), "/metrics", io.NopCloser(strings.NewReader("m")), "m")
	if !errors.Is(err, registry.ErrReservedPath) {
		t.Fatalf("want ErrReservedPath, got %v", err)
	}
}

func TestServer_RegisterBeforeStartHonorsDeadline(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	spy := &closeSpy{Reader: strings.NewReader("early")}
	if err := s.Registrator().Register(ctx, "/early", spy, "early"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if !spy.closed.Load() {
		t.Fatalf("withdrawn file not closed")
	}
}

func TestServer_SeedsFilesFromConfig(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(src, []byte("seeded"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Files = []config.File{
		{Path: "/notes", Source: src},
		{Path: "/missing", Source: filepath.Join(dir, "absent")},
	}
	s := start(t, cfg)

	code, hdr, body := get(t, url(s, "/notes"))
	if code != http.StatusOK || string(body) != "seeded" {
		t.Fatalf("status=%d body=%q", code, body)
	}
	if !strings.Contains(hdr.Get("Content-Disposition"), `filename="notes.txt"`) {
		t.Fatalf("Content-Disposition = %q", hdr.Get("Content-Disposition"))
	}
	if code, _, _ := get(t, url(s, "/missing")); code != http.StatusNotFound {
		t.Fatalf("unreadable seed should not be served, got %d", code)
	}
}

func TestServer_ShutdownReleasesFilesAndRejectsRegistrations(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); !errors.Is(err, ErrStarted) {
		t.Fatalf("second start: %v", err)
	}

	spy := &closeSpy{Reader: strings.NewReader("never served")}
	if err := s.Registrator().Register(context.Background(), "/later", spy, "later"); err != nil {
		t.Fatal(err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- s.Wait() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-waitErr:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Wait did not return after Shutdown")
	}

	if !spy.closed.Load() {
		t.Fatalf("unserved file not released on shutdown")
	}
	err = s.Registrator().Register(context.Background(), "/x", io.NopCloser(strings.NewReader("x")), "x")
	if !errors.Is(err, registry.ErrClosed) {
		t.Fatalf("register after shutdown: %v", err)
	}
}

func TestStart_BindErrorIsReturned(t *testing.T) {
	first := start(t, config.Default())

	cfg := config.Default()
	cfg.Listen = first.Addr().String()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("expected bind error on %s", cfg.Listen)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.QueueSize = -3
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
