package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/worker/protocol"
)

// runIO streams program output as output notifications and turns input
// reads into prompts.
type runIO struct {
	h *Host
}

func (r runIO) Print(s string) {
	r.h.send(0, protocol.Output{Chunk: s})
}

func (r runIO) ReadLine(ctx context.Context, prompt string) (string, error) {
	return r.h.prompter.Ask(ctx, prompt)
}

// startRun executes off the delivery goroutine so input replies keep flowing
// while the program waits for them.
func (h *Host) startRun(id uint64, req *protocol.RunRequest) {
	if !h.running.CompareAndSwap(false, true) {
		h.send(id, protocol.ErrorResponse{Message: "a program is already running in this worker"})
		return
	}
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		defer h.running.Store(false)

		if err := h.execute(req); err != nil {
			if h.ctx.Err() != nil {
				return
			}
			h.log.Debug("program failed", zap.String("uri", req.URI), zap.Error(err))
			h.send(0, protocol.Output{Chunk: fmt.Sprintf("error: %v\n", err)})
		}
		h.send(id, protocol.RunResponse{})
	}()
}

func (h *Host) execute(req *protocol.RunRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("engine panicked during run", zap.Any("panic", r))
			err = fmt.Errorf("internal engine error: %v", r)
		}
	}()
	return h.engine.Run(h.ctx, req.URI, req.Contents, runIO{h: h})
}
