// pkg/registry/actor.go
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-handoff/pkg/stream"
	"go.uber.org/zap"
)

// DefaultQueueSize is the capacity of the actor inbox. Senders block when it is full.
const DefaultQueueSize = 10

// Actor is the single owner of the path→Entry mapping. Every read and write of
// the mapping goes through its inbox and is applied by the Run goroutine, one
// command at a time.
type Actor struct {
	queue chan command

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runOnce  sync.Once

	log       *zap.Logger
	obs       Observer
	blockSize int
	reserved  map[string]struct{} // fixed after New
}

type Option func(*Actor)

func WithQueueSize(n int) Option {
	return func(a *Actor) {
		if n > 0 {
			a.queue = make(chan command, n)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Actor) {
		if l != nil {
			a.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Actor) {
		if o != nil {
			a.obs = o
		}
	}
}

// WithBlockSize sets the read block size handed to stream.Pump.
func WithBlockSize(n int) Option {
	return func(a *Actor) {
		if n > 0 {
			a.blockSize = n
		}
	}
}

// WithReservedPaths makes Register reject paths that never reach the
// dispatch handler, such as a metrics endpoint.
func WithReservedPaths(paths ...string) Option {
	return func(a *Actor) {
		for _, p := range paths {
			if p != "" {
				a.reserved[p] = struct{}{}
			}
		}
	}
}

func New(opts ...Option) *Actor {
	a := &Actor{
		queue:     make(chan command, DefaultQueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       zap.NewNop(),
		obs:       nopObserver{},
		blockSize: stream.DefaultBlockSize,
		reserved:  map[string]struct{}{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Registrator returns the client handle used to submit registrations.
func (a *Actor) Registrator() Registrator { return Registrator{a: a} }

// Done is closed once Run has returned and all remaining entries were released.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Stop asks Run to return. Safe to call more than once.
func (a *Actor) Stop() { a.stopOnce.Do(func() { close(a.stop) }) }

// Run processes commands until ctx is cancelled or Stop is called. Only the
// first call does anything; later calls return immediately.
func (a *Actor) Run(ctx context.Context) {
	a.runOnce.Do(func() { a.run(ctx) })
}

func (a *Actor) run(ctx context.Context) {
	entries := make(map[string]Entry)
	a.log.Info("registry actor started", zap.Int("queue", cap(a.queue)))
	defer a.shutdown(entries)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case cmd := <-a.queue:
			a.handle(entries, cmd)
		}
	}
}

func (a *Actor) handle(entries map[string]Entry, cmd command) {
	switch c := cmd.(type) {
	case registerCmd:
		if !c.claim.CompareAndSwap(false, true) {
			// withdrawn by the sender
			return
		}
		old, replaced := entries[c.path]
		entries[c.path] = c.entry
		if replaced {
			_ = old.File.Close()
		}
		close(c.applied)
		a.log.Info("file registered",
			zap.String("path", c.path),
			zap.String("name", c.entry.Name),
			zap.Bool("replaced", replaced),
		)
		a.obs.Registered(c.path, replaced)
		a.obs.Entries(len(entries))

	case dispatchCmd:
		e, ok := entries[c.path]
		if ok && c.ctx.Err() != nil {
			// requester left while queued; keep the entry for the next one
			a.log.Info("dispatch abandoned", zap.String("path", c.path), zap.Error(c.ctx.Err()))
			c.reply <- NotFound
			return
		}
		if !ok {
			c.reply <- NotFound
			a.log.Info("dispatch miss", zap.String("path", c.path))
			a.obs.Dispatched(c.path, false)
			return
		}
		delete(entries, c.path)
		c.reply <- Found(e.Name)
		a.obs.Dispatched(c.path, true)
		a.obs.Entries(len(entries))

		id := uuid.NewString()
		a.log.Info("dispatch started",
			zap.String("transferId", id),
			zap.String("path", c.path),
			zap.String("name", e.Name),
		)
		go a.transfer(c.ctx, id, c.path, e, c.body)

	case lenCmd:
		c.reply <- len(entries)
	}
}

func (a *Actor) transfer(ctx context.Context, id, path string, e Entry, body chan<- stream.Chunk) {
	start := time.Now()
	n, err := stream.Pump(ctx, e.File, body, a.blockSize)
	a.obs.Streamed(path, n, err)

	log := a.log.With(
		zap.String("transferId", id),
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.Duration("lat", time.Since(start)),
	)
	switch {
	case err == nil:
		log.Info("transfer complete")
	case errors.Is(err, stream.ErrStreamCorrupted):
		log.Error("transfer failed", zap.Error(err))
	default:
		log.Warn("transfer aborted", zap.Error(err))
	}
}

// shutdown drops the mapping, releasing every file it still owns, and closes
// the files of registrations still sitting in the inbox.
func (a *Actor) shutdown(entries map[string]Entry) {
	for p, e := range entries {
		_ = e.File.Close()
		delete(entries, p)
	}
	for drained := false; !drained; {
		select {
		case cmd := <-a.queue:
			if c, ok := cmd.(registerCmd); ok && c.claim.CompareAndSwap(false, true) {
				_ = c.entry.File.Close()
			}
		default:
			drained = true
		}
	}
	a.obs.Entries(0)
	a.log.Info("registry actor stopped")
	close(a.done)
}

func (a *Actor) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	select {
	case a.queue <- cmd:
		return nil
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
