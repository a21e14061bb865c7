package host

import (
	"errors"
	"io"
	"os"
)

// Stdio joins the process's stdin and stdout into one connection, for workers
// spawned as child processes.
func Stdio() io.ReadWriteCloser {
	return stdio{}
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}

