// pkg/stream/stream.go
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize bounds a single read and therefore a single Chunk.
const DefaultBlockSize = 1024

// ErrStreamCorrupted marks a transfer whose source failed mid-read.
var ErrStreamCorrupted = errors.New("stream corrupted")

// Chunk is one unit of transfer: either Data or a terminal Err.
type Chunk struct {
	Data []byte
	Err  error
}

// Pump drains src into out in blocks of at most blockSize bytes.
//
// out is closed when Pump returns, whatever the outcome. A read failure is
// reported to the consumer as a single Chunk carrying ErrStreamCorrupted; a
// cancelled ctx (consumer gone) stops the pump without emitting anything.
// src is always closed. The returned count is the number of bytes handed to out.
func Pump(ctx context.Context, src io.ReadCloser, out chan<- Chunk, blockSize int) (int64, error) {
	defer close(out)
	defer src.Close()

	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	buf := make([]byte, blockSize)

	var sent int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := send(ctx, out, Chunk{Data: data}); err != nil {
				return sent, err
			}
			sent += int64(n)
		}
		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF):
			return sent, nil
		default:
			err := fmt.Errorf("%w: %v", ErrStreamCorrupted, rerr)
			if serr := send(ctx, out, Chunk{Err: err}); serr != nil {
				return sent, serr
			}
			return sent, err
		}
	}
}

func send(ctx context.Context, out chan<- Chunk, c Chunk) error {
	select {
	case out <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
