package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cdrip/internal/services"
	"cdrip/internal/store"
)

// protocolExport is the json/yaml shape of "protocol show".
type protocolExport struct {
	Run   store.Run `json:"run" yaml:"run"`
	Lines []string  `json:"lines" yaml:"lines"`
}

func newProtocolCommand(ctx *commandContext) *cobra.Command {
	protocolCmd := &cobra.Command{
		Use:   "protocol",
		Short: "Inspect recorded rip sessions and extraction protocols",
	}
	protocolCmd.AddCommand(newProtocolListCommand(ctx))
	protocolCmd.AddCommand(newProtocolRunsCommand(ctx))
	protocolCmd.AddCommand(newProtocolShowCommand(ctx))
	return protocolCmd
}

func newProtocolListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rip sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				tracks := strconv.Itoa(s.TrackCount)
				if s.WholeDisc {
					tracks = "disc"
				}
				rows = append(rows, []string{
					s.ID,
					s.DiscID,
					tracks,
					outcomeLabel(string(s.Status)),
					s.StartedAt.Local().Format(time.DateTime),
					sessionDuration(s),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Session", "Disc", "Tracks", "Status", "Started", "Duration"}, rows, 2, 5))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions (0 for all)")
	return cmd
}

func newProtocolRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs <session-id>",
		Short: "List the extraction runs of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			session, err := st.GetSession(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			runs, err := st.RunsForSession(cmd.Context(), session.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (disc %s, %s)\n", session.ID, session.DiscID, outcomeLabel(string(session.Status)))
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				track := fmt.Sprintf("%02d", r.Track)
				if r.Track == 0 {
					track = "disc"
				}
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					track,
					outcomeLabel(r.Outcome),
					formatCount(r.SectorsRead) + " / " + formatCount(r.SectorsPlanned),
					formatCount(r.Warnings),
					r.Message,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Run", "Track", "Outcome", "Sectors", "Warnings", "Message"}, rows, 0, 3, 4))
			return nil
		},
	}
}

func newProtocolShowCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the extraction protocol of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || runID <= 0 {
				return services.Wrap(services.ErrValidation, "cli", "protocol show", fmt.Sprintf("invalid run id %q", args[0]), nil)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			lines, err := st.ProtocolForRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return writeProtocol(cmd.OutOrStdout(), format, protocolExport{Run: *run, Lines: lines})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, or yaml")
	return cmd
}

func writeProtocol(out io.Writer, format string, doc protocolExport) error {
	if doc.Lines == nil {
		doc.Lines = []string{}
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		r := doc.Run
		fmt.Fprintf(out, "Run %d, track %d: %s\n", r.ID, r.Track, r.Message)
		if r.Details != "" {
			fmt.Fprintf(out, "%s\n", r.Details)
		}
		fmt.Fprintf(out, "Output: %s\n\n", r.OutputPath)
		for _, line := range doc.Lines {
			fmt.Fprintln(out, line)
		}
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return services.Wrap(services.ErrValidation, "cli", "protocol show", fmt.Sprintf("unsupported format %q (use text, json, or yaml)", format), nil)
	}
}

func sessionDuration(s store.Session) string {
	if s.FinishedAt.IsZero() {
		return "-"
	}
	return s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
}
