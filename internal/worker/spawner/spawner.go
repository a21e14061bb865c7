// Package spawner starts workers. A worker is anything that speaks the
// frame protocol over a byte stream: a goroutine behind an in-memory pipe or
// a child process on stdio.
package spawner

import (
	"context"
	"io"

	"github.com/kast-lang/playground/internal/worker/protocol"
)

// Conn is the coordinator's end of a worker connection. Closing it kills the
// worker.
type Conn interface {
	io.ReadWriteCloser
	Codec() protocol.Codec
}

// Spawner creates a fresh, isolated worker per call.
type Spawner interface {
	Spawn(ctx context.Context) (Conn, error)
}
