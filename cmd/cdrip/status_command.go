package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cdrip/internal/config"
	"cdrip/internal/preflight"
	"cdrip/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show drive readiness and recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			fmt.Fprintln(out, renderSectionHeader("Configuration"))
			renderConfigSummary(out, cfg)
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderSectionHeader("Readiness"))
			results := preflight.RunAll(cmd.Context(), cfg, ctx.driveStatus)
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderSectionHeader("Last session"))
			renderLastSession(cmd.Context(), out, ctx, cfg, colorize)
			return nil
		},
	}
}

func renderConfigSummary(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Device:", cfg.Drive.Device)
	fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Paranoia mode:", cfg.Extraction.ParanoiaMode)
	fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Max retries:", cfg.Extraction.MaxRetries)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Never skip:", yesNo(cfg.Extraction.NeverSkip))
	fmt.Fprintf(out, "  %-*s %+d samples\n", statusLabelWidth, "Read offset:", cfg.Drive.SampleOffset)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Output:", cfg.Paths.OutputDir)
}

func renderLastSession(ctx context.Context, out io.Writer, cmdCtx *commandContext, cfg *config.Config, colorize bool) {
	st, err := cmdCtx.openStore(cfg)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
		return
	}
	defer st.Close()

	sessions, err := st.ListSessions(ctx, 1)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "  No sessions recorded")
		return
	}
	s := sessions[0]
	kind := statusInfo
	switch s.Status {
	case store.SessionCompleted:
		kind = statusOK
	case store.SessionFailed:
		kind = statusError
	case store.SessionCancelled:
		kind = statusWarn
	}
	detail := fmt.Sprintf("%s, disc %s, %d tracks, started %s",
		outcomeLabel(string(s.Status)), s.DiscID, s.TrackCount, s.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintln(out, renderStatusLine(strings.TrimSpace(s.ID[:min(8, len(s.ID))]), kind, detail, colorize))
}
