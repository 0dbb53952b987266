package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fintrack/internal/app"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// session is filled in by the root command before any subcommand runs.
type session struct {
	envFile string
	cfg     *config.Config
	logger  *log.Logger
}

// NewRootCommand builds the fintrack command tree. Logs go to stderr,
// command output to stdout.
func NewRootCommand() *cobra.Command {
	rt := &session{}

	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Personal income and expense tracker",
		Long:          `fintrack records income and expense entries, emits recurring transactions and serves a JSON API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := LoadEnvFile(rt.envFile); err != nil {
				return err
			}
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger, err := SetupLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rt.cfg, rt.logger = cfg, logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCommand(rt),
		newSchedulerCommand(rt),
		newWorkerCommand(rt),
		newReconcileCommand(rt),
		newProcessCommand(rt),
		newEntriesCommand(rt),
		newTotalsCommand(rt),
		newUpcomingCommand(rt),
	)
	return root
}

// withApp opens the application for the duration of fn.
func (rt *session) withApp(ctx context.Context, fn func(*app.Application) error) error {
	a, err := app.New(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			rt.logger.Warn("Failed to close application", log.FieldError, cerr)
		}
	}()
	return fn(a)
}

func newServeCommand(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the recurring scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return rt.withApp(ctx, func(a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newWorkerCommand(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Mirror entries into the spreadsheet from broker events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return rt.withApp(ctx, func(a *app.Application) error {
				mirror, err := backend.NewMirror(ctx, rt.cfg, a.Backend.Caches, rt.logger)
				if err != nil {
					return err
				}
				return a.Sync(ctx, mirror)
			})
		},
	}
}

func newReconcileCommand(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Mirror the full entry list into the spreadsheet once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				mirror, err := backend.NewMirror(ctx, rt.cfg, a.Backend.Caches, rt.logger)
				if err != nil {
					return err
				}
				res, err := a.Reconcile(ctx, a.SyncWorker(mirror))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "upserted=%d deleted=%d failed=%d\n", res.Upserted, res.Deleted, res.Failed)
				if res.Failed > 0 {
					return fmt.Errorf("%d rows failed to sync", res.Failed)
				}
				return nil
			})
		},
	}
}

func writeLines(w io.Writer, lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func newSchedulerCommand(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the recurring scheduler and liveness monitor without the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return rt.withApp(ctx, func(a *app.Application) error {
				return a.Schedule(ctx)
			})
		},
	}
}
