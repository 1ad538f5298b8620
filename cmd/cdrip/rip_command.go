package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cdrip/internal/cdda"
	"cdrip/internal/extract"
	"cdrip/internal/ripping"
	"cdrip/internal/services"
)

func newRipCommand(ctx *commandContext) *cobra.Command {
	var tracks []int
	var wholeDisc bool
	var outDir string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "rip",
		Short: "Extract audio tracks from the disc into WAV files",
		Long: `Extract audio tracks from the disc in the configured drive.

Every sector is verified according to extraction.paranoia_mode. Without
--track all audio tracks are ripped; --whole-disc writes a single image of
every audio track instead. Press Ctrl+C to cancel the track in progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if wholeDisc && len(tracks) > 0 {
				return services.Wrap(services.ErrValidation, "cli", "rip", "--whole-disc cannot be combined with --track", nil)
			}
			st, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errOut := cmd.ErrOrStderr()
			view := newRipView(errOut, !noProgress && isTerminal(errOut))
			ripper := ctx.newRipper(cfg, st, view.handle)
			summary, ripErr := ripper.RipDisc(services.WithStage(runCtx, "rip"), ripping.Plan{
				Tracks:    tracks,
				WholeDisc: wholeDisc,
				OutputDir: outDir,
			})
			view.finish()
			if summary != nil {
				printRipSummary(cmd.OutOrStdout(), summary)
			}
			return ripErr
		},
	}

	cmd.Flags().IntSliceVarP(&tracks, "track", "t", nil, "Track number to rip (repeatable)")
	cmd.Flags().BoolVar(&wholeDisc, "whole-disc", false, "Rip all audio tracks into a single disc image")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: output_dir/<disc id>)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// ripView renders worker events on the terminal: a progress bar per track
// when interactive, plain warning lines otherwise.
type ripView struct {
	out     io.Writer
	bars    bool
	track   cdda.TrackSelector
	bar     *progressbar.ProgressBar
	started bool
}

func newRipView(out io.Writer, bars bool) *ripView {
	return &ripView{out: out, bars: bars}
}

func (v *ripView) handle(ev extract.Event) {
	switch ev.Kind {
	case extract.EventProgress:
		if !v.started || ev.Track != v.track {
			v.startTrack(ev.Track)
		}
		if v.bar != nil {
			_ = v.bar.Set(ev.Progress.Percent)
		}
	case extract.EventWarning:
		v.clear()
		fmt.Fprintf(v.out, "warning (%s): %s\n", trackLabel(ev.Track), ev.Message)
	case extract.EventError:
		v.clear()
		fmt.Fprintf(v.out, "error (%s): %s\n", trackLabel(ev.Track), ev.Message)
		if ev.Details != "" {
			fmt.Fprintf(v.out, "  %s\n", ev.Details)
		}
	}
	if ev.Terminal {
		v.finish()
		v.started = false
	}
}

func (v *ripView) startTrack(track cdda.TrackSelector) {
	v.finish()
	v.track = track
	v.started = true
	if !v.bars {
		return
	}
	v.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(v.out),
		progressbar.OptionSetDescription(trackLabel(track)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (v *ripView) clear() {
	if v.bar != nil {
		_ = v.bar.Clear()
	}
}

func (v *ripView) finish() {
	if v.bar != nil {
		_ = v.bar.Finish()
		v.bar = nil
	}
}

func trackLabel(track cdda.TrackSelector) string {
	if track.IsWholeDisc() {
		return "Disc"
	}
	return fmt.Sprintf("Track %02d", track.Number())
}

func printRipSummary(out io.Writer, summary *ripping.Summary) {
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		label := fmt.Sprintf("%02d", r.Track)
		if r.Track == 0 {
			label = "disc"
		}
		rows = append(rows, []string{
			label,
			outcomeLabel(r.Outcome.String()),
			formatCount(r.SectorsRead),
			formatCount(r.Warnings),
			r.Duration.Round(100 * time.Millisecond).String(),
			r.Message,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "Outcome", "Sectors", "Warnings", "Time", "Message"}, rows, 2, 3, 4))
	fmt.Fprintln(out, summary.String())
}
