package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fridgekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/config"
)

// NewRootCommand builds the fridge command tree. Without a subcommand it
// starts the shell.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "fridge",
		Short: "Offline-first fridge inventory with background sync",
		Long: `fridge keeps a local inventory of what is in your fridge.

Every change is stored on this device first and synced with the server in
the background whenever you are signed in and the server is reachable.`,
		Version:      buildinfo.Version(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, in, out, func(ctx context.Context, a *App) error { return a.Shell(ctx) })
		},
	}
	config.BindFlags(root.PersistentFlags())
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive shell",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, in, out, func(ctx context.Context, a *App) error { return a.Shell(ctx) })
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run one sync pass in the foreground",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, in, out, func(ctx context.Context, a *App) error { return a.SyncNow(ctx) })
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the session and pending changes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, in, out, func(ctx context.Context, a *App) error { return a.Status(ctx) })
			},
		},
	)
	return root
}

func withApp(cmd *cobra.Command, in io.Reader, out io.Writer, fn func(context.Context, *App) error) (err error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := NewApp(ctx, cfg, in, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}
