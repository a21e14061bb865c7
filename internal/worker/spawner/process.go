package spawner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

// Process runs each worker as a child process speaking frames on
// stdin/stdout. Stderr is forwarded to the log.
type Process struct {
	Command []string
	Env     []string
	Codec   protocol.Codec
	Logger  *logger.Logger
}

func (s *Process) Spawn(ctx context.Context) (Conn, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("no worker command configured")
	}
	codec := s.Codec
	if codec == nil {
		codec = protocol.JSONCodec{}
	}
	log := s.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("worker-process")

	// Not CommandContext: the worker must outlive the request that spawned it.
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Env = append(os.Environ(), s.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	// stdout is read by the frame decoder long after Wait may have returned,
	// so the parent owns the read end instead of exec.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	_ = stdoutW.Close()
	log.Info("worker process started", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", s.Command))

	c := &processConn{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		codec:  codec,
		exited: make(chan struct{}),
		log:    log,
	}
	c.wg.Add(1)
	go c.readStderr(stderr)
	go c.waitForExit()
	return c, nil
}

type processConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	codec  protocol.Codec

	wg     sync.WaitGroup
	exited chan struct{}
	once   sync.Once
	log    *logger.Logger
}

func (c *processConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *processConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }
func (c *processConn) Codec() protocol.Codec        { return c.codec }

// Close kills the worker and reaps it.
func (c *processConn) Close() error {
	c.once.Do(func() {
		_ = c.stdin.Close()
		select {
		case <-c.exited:
		default:
			if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				c.log.Warn("failed to kill worker process", zap.Error(err))
			}
			<-c.exited
		}
		_ = c.stdout.Close()
	})
	return nil
}

func (c *processConn) readStderr(r io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.log.Debug("worker stderr", zap.String("line", scanner.Text()))
	}
}

func (c *processConn) waitForExit() {
	defer close(c.exited)
	// Wait closes the stderr pipe, so it must be drained first.
	c.wg.Wait()
	err := c.cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		c.log.Info("worker process exited")
	case errors.As(err, &exitErr):
		c.log.Info("worker process exited with error", zap.Int("exit_code", exitErr.ExitCode()))
	default:
		c.log.Warn("worker process wait failed", zap.Error(err))
	}
}
