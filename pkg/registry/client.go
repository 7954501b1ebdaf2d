// pkg/registry/client.go
package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-handoff/pkg/stream"
)

// Dispatch removes the Entry for path and starts streaming it into body.
//
// The returned Disposition says whether anything will arrive on body. When it
// is Found, body is fed by a background pump tied to ctx and closed when the
// transfer ends; when it is NotFound, body is never touched. A non-nil error
// means the actor could not be reached or did not answer.
func (a *Actor) Dispatch(ctx context.Context, path string, body chan<- stream.Chunk) (Disposition, error) {
	reply := make(chan Disposition, 1)
	cmd := dispatchCmd{ctx: ctx, path: path, reply: reply, body: body}
	if err := a.enqueue(ctx, cmd); err != nil {
		return NotFound, fmt.Errorf("dispatch %q: %w", path, err)
	}
	select {
	case d := <-reply:
		return d, nil
	case <-a.done:
		select {
		case d := <-reply:
			return d, nil
		default:
		}
		return NotFound, fmt.Errorf("dispatch %q: %w", path, ErrClosed)
	case <-ctx.Done():
		return NotFound, fmt.Errorf("dispatch %q: %w", path, ctx.Err())
	}
}

// Len reports how many entries are waiting to be served.
func (a *Actor) Len(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := a.enqueue(ctx, lenCmd{reply: reply}); err != nil {
		return 0, err
	}
	select {
	case n := <-reply:
		return n, nil
	case <-a.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Registrator submits registrations to an Actor. It is a plain value: copy it
// freely and use it from any goroutine.
type Registrator struct {
	a *Actor
}

// Register makes file downloadable once under path, with name as the
// attachment filename. It returns after the actor has applied the
// registration. Ownership of file passes to the registry.
//
// If ctx ends or the actor stops before the registration is applied, it is
// withdrawn: the file is closed here and the error returned. A registration
// the actor has already started applying still completes, and Register then
// returns nil.
func (r Registrator) Register(ctx context.Context, path string, file io.ReadCloser, name string) error {
	if file == nil {
		return fmt.Errorf("register %q: %w", path, ErrNilFile)
	}
	if path == "" {
		_ = file.Close()
		return ErrInvalidPath
	}
	if _, ok := r.a.reserved[path]; ok {
		_ = file.Close()
		return fmt.Errorf("register %q: %w", path, ErrReservedPath)
	}

	applied := make(chan struct{})
	cmd := registerCmd{
		path:    path,
		entry:   Entry{File: file, Name: name},
		applied: applied,
		claim:   new(atomic.Bool),
	}
	if err := r.a.enqueue(ctx, cmd); err != nil {
		_ = file.Close()
		return fmt.Errorf("register %q: %w", path, err)
	}

	var err error
	select {
	case <-applied:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-r.a.done:
		err = ErrClosed
	}
	if cmd.claim.CompareAndSwap(false, true) {
		// still queued; the actor will skip it
		_ = file.Close()
		return fmt.Errorf("register %q: %w", path, err)
	}

	// The actor claimed it first: it is either being applied or was released
	// by shutdown. Both settle without further waiting on the caller.
	select {
	case <-applied:
		return nil
	case <-r.a.done:
		return fmt.Errorf("register %q: %w", path, ErrClosed)
	}
}

// RegisterFile opens fsPath and registers it under path. An empty name
// defaults to the base name of fsPath.
func (r Registrator) RegisterFile(ctx context.Context, path, fsPath, name string) error {
	f, err := os.Open(fsPath)
	if err != nil {
		return fmt.Errorf("register %q: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(fsPath)
	}
	return r.Register(ctx, path, f, name)
}
