package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// Periodic fires a callback on a cron schedule.
type Periodic struct {
	cron *cron.Cron
	log  logging.Logger
}

// StartPeriodic runs fn on spec, a standard cron expression or a
// descriptor such as "@every 15m".
func StartPeriodic(spec string, fn func(), log logging.Logger) (*Periodic, error) {
	cl := cronLogger{log: log.With("component", "cron")}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, fmt.Errorf("sync schedule %q: %w", spec, err)
	}
	c.Start()
	return &Periodic{cron: c, log: log}, nil
}

// Stop waits for a running callback to return.
func (p *Periodic) Stop() {
	<-p.cron.Stop().Done()
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}
