package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// PassReport is the outcome of one sync pass.
type PassReport struct {
	Started  time.Time
	Finished time.Time
	Push     PushReport
	Pull     DeltaReport
	// PullErr is the delta failure, if any. Push failures live on the
	// records.
	PullErr error
}

// Engine runs sync passes. A pass pushes first so the pull that follows
// already sees the server's view of this device's changes.
type Engine struct {
	push *PushAgent
	pull *DeltaAgent
	log  logging.Logger
	now  func() time.Time
}

func NewEngine(push *PushAgent, pull *DeltaAgent, log logging.Logger) *Engine {
	return &Engine{push: push, pull: pull, log: log.With("component", "sync"), now: time.Now}
}

// RunPass runs push then pull. It never fails; problems are reported.
func (e *Engine) RunPass(ctx context.Context) PassReport {
	rep := PassReport{Started: e.now()}

	rep.Push = e.push.Push(ctx)
	if ctx.Err() == nil {
		rep.Pull, rep.PullErr = e.pull.Pull(ctx)
	} else {
		rep.PullErr = ctx.Err()
	}
	rep.Finished = e.now()

	if rep.PullErr != nil {
		e.log.Warn(ctx, "sync pass finished with errors", "error", rep.PullErr,
			"pushed", rep.Push.Succeeded, "push_failed", rep.Push.Failed)
	} else {
		e.log.Info(ctx, "sync pass finished",
			"pushed", rep.Push.Succeeded, "push_failed", rep.Push.Failed,
			"pulled", rep.Pull.Items.Fetched+rep.Pull.Notes.Fetched,
			"elapsed", rep.Finished.Sub(rep.Started))
	}
	return rep
}

// Run is RunPass shaped as a scheduler work unit.
func (e *Engine) Run(ctx context.Context) error {
	return e.RunPass(ctx).PullErr
}
