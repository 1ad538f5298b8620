package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cdrip/internal/daemon"
	"cdrip/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Watch the drive, serve the status API, and prune old sessions",
		Long: `Run cdrip in the foreground as a daemon.

The daemon watches udev for inserted audio discs and rips them when
daemon.auto_rip is set, serves a JSON API on daemon.api_bind, and prunes
sessions older than daemon.retention_days.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cfg)
			st, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			d, err := daemon.New(cfg, st, logger,
				daemon.WithRipper(ctx.newRipper(cfg, st, nil)),
				daemon.WithNotifier(ctx.notifier(cfg)),
			)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := d.Run(runCtx); err != nil {
				logging.ErrorWithContext(logger, "daemon exited", "daemon_failed", logging.Error(err))
				return fmt.Errorf("daemon: %w", err)
			}
			return nil
		},
	}
}
