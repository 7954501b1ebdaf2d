// pkg/registry/types.go
package registry

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-handoff/pkg/stream"
)

var (
	// ErrClosed is returned once the actor has stopped accepting commands.
	ErrClosed = errors.New("registry: actor closed")
	// ErrInvalidPath rejects registrations without a path.
	ErrInvalidPath = errors.New("registry: empty path")
	// ErrNilFile rejects registrations without a readable resource.
	ErrNilFile = errors.New("registry: nil file")
	// ErrReservedPath rejects paths the server routes elsewhere.
	ErrReservedPath = errors.New("registry: reserved path")
)

// Entry is a registered file waiting to be served exactly once.
type Entry struct {
	File io.ReadCloser
	Name string
}

// Disposition is the actor's answer to a dispatch.
type Disposition struct {
	Found bool
	Name  string
}

// NotFound is the Disposition for a path with no Entry.
var NotFound = Disposition{}

// Found builds the Disposition for a served Entry.
func Found(name string) Disposition { return Disposition{Found: true, Name: name} }

// Observer receives registry events. Implementations must not block.
type Observer interface {
	Registered(path string, replaced bool)
	Dispatched(path string, found bool)
	Streamed(path string, n int64, err error)
	Entries(n int)
}

type nopObserver struct{}

func (nopObserver) Registered(string, bool)       {}
func (nopObserver) Dispatched(string, bool)       {}
func (nopObserver) Streamed(string, int64, error) {}
func (nopObserver) Entries(int)                   {}

// ---- commands (actor inbox) ----

type command interface{ isCommand() }

type registerCmd struct {
	path    string
	entry   Entry
	applied chan struct{}
	// claim is won by whichever side takes the file: the actor when applying
	// or draining, the sender when withdrawing.
	claim *atomic.Bool
}

type dispatchCmd struct {
	ctx   context.Context
	path  string
	reply chan<- Disposition
	body  chan<- stream.Chunk
}

type lenCmd struct {
	reply chan<- int
}

func (registerCmd) isCommand() {}
func (dispatchCmd) isCommand() {}
func (lenCmd) isCommand()      {}
