package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/client"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/config"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/services"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/session"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/store"
	"github.com/dmitrijs2005/fridgekeeper/internal/filex"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// App is the wired client: local store, session, sync engine and the
// scheduler that runs sync passes in the background.
type App struct {
	cfg       *config.Config
	log       logging.Logger
	logCloser io.Closer

	repos     *repositories.Repositories
	sessions  *session.Store
	inventory *services.Inventory
	engine    *services.Engine
	watcher   *scheduler.Watcher
	queue     *scheduler.Queue
	trigger   *scheduler.Trigger

	cancel context.CancelFunc

	reader     *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

// NewApp opens the database and wires every component. Background work
// started by the app is bound to ctx and stops on Close.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	log, logCloser, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	repos, err := repositories.InitDatabase(ctx, repositories.DSN(cfg.DatabasePath), log)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sessions := session.NewStore(repos.Metadata)

	api, err := client.NewHTTPClient(cfg.ServerURL, sessions.TokenSource(ctx), cfg.RequestTimeout)
	if err != nil {
		cancel()
		_ = repos.Close()
		_ = logCloser.Close()
		return nil, err
	}

	st := store.NewObservable(repos.Records, log)
	engine := services.NewEngine(
		services.NewPushAgent(st, api, sessions, log),
		services.NewDeltaAgent(st, repos.Metadata, api, sessions, log),
		log,
	)

	watcher := scheduler.NewWatcher(api, cfg.OnlineCheckInterval, cfg.RequestTimeout, log)
	queue := scheduler.NewQueue(ctx, watcher, log)
	trigger := scheduler.NewTrigger(queue, engine.Run)
	watcher.OnOnline(trigger.RequestSyncPass)

	a := &App{
		cfg:       cfg,
		log:       log,
		logCloser: logCloser,
		repos:     repos,
		sessions:  sessions,
		inventory: services.NewInventory(st, trigger, log),
		engine:    engine,
		watcher:   watcher,
		queue:     queue,
		trigger:   trigger,
		cancel:    cancel,
		reader:    bufio.NewReader(in),
		out:       out,
	}
	a.readSecret = a.secretReader(in)
	return a, nil
}

func (a *App) secretReader(in io.Reader) func() (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func() (string, error) { return GetPassword(f, "Paste access token", a.out) }
	}
	return func() (string, error) { return GetSimpleText(a.reader, "Paste access token", a.out) }
}

// Close stops background work and releases the database.
func (a *App) Close() error {
	a.cancel()
	a.queue.Wait()
	return errors.Join(a.repos.Close(), a.logCloser.Close())
}

// Shell runs the REPL together with the connectivity watcher and the
// periodic sync schedule. A sync pass is requested on start.
func (a *App) Shell(ctx context.Context) error {
	periodic, err := scheduler.StartPeriodic(a.cfg.SyncSchedule, a.trigger.RequestSyncPass, a.log)
	if err != nil {
		return err
	}
	defer periodic.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.watcher.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		fmt.Fprintln(a.out, "Welcome to fridge (type 'help' for commands)")
		a.trigger.RequestSyncPass()

		done := make(chan struct{})
		go func() {
			defer close(done)
			runREPL(gctx, a, a.statusLine, a.reader, a.out)
		}()
		select {
		case <-done:
		case <-gctx.Done():
		}
		return nil
	})
	return g.Wait()
}

// statusLine is the REPL prompt suffix: session mode, connectivity and
// the number of changes waiting for a push.
func (a *App) statusLine(ctx context.Context) string {
	s := "signed out"
	if cur, err := a.sessions.Current(ctx); err == nil {
		switch {
		case cur.Mode == session.ModeLocal:
			s = "local"
		case cur.NeedsReauth:
			s = "login required"
		case cur.Mode == session.ModeAuthenticated:
			s = "signed in"
		}
	}
	if a.watcher.Online() {
		s += " online"
	} else {
		s += " offline"
	}
	if c, err := a.inventory.Status(ctx); err == nil && c.Pending() > 0 {
		s += fmt.Sprintf(" %d pending", c.Pending())
	}
	return "(" + s + ")"
}
