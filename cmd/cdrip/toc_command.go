package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cdrip/internal/cdda"
	"cdrip/internal/cdrom"
)

type tocTrackJSON struct {
	Number   int    `json:"number"`
	Data     bool   `json:"data"`
	StartLBA int64  `json:"start_lba"`
	Sectors  int64  `json:"sectors"`
	Length   string `json:"length"`
}

type tocJSON struct {
	DiscID  string         `json:"disc_id"`
	LeadOut int64          `json:"lead_out"`
	Tracks  []tocTrackJSON `json:"tracks"`
}

func newTOCCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "toc",
		Short: "Show the table of contents of the disc",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			disc, err := ctx.opener(cfg)(cmd.Context(), cfg.Drive.Device)
			if err != nil {
				return err
			}
			defer disc.Close()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tocView(disc.TOC))
			}
			fmt.Fprint(out, renderTOC(disc.TOC))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func tocView(toc cdrom.TOC) tocJSON {
	view := tocJSON{DiscID: toc.DiscID(), LeadOut: toc.LeadOut}
	for _, tr := range toc.Tracks {
		entry := tocTrackJSON{Number: tr.Number, Data: tr.Data, StartLBA: tr.StartLBA}
		if !tr.Data {
			entry.Sectors = toc.Frames(tr.Number)
			entry.Length = cdda.FormatPosition(entry.Sectors)
		}
		view.Tracks = append(view.Tracks, entry)
	}
	return view
}

func renderTOC(toc cdrom.TOC) string {
	rows := make([][]string, 0, len(toc.Tracks))
	for _, tr := range toc.Tracks {
		kind, sectors, length := "audio", "", ""
		if tr.Data {
			kind = "data"
		} else {
			frames := toc.Frames(tr.Number)
			sectors = formatCount(frames)
			length = cdda.FormatPosition(frames)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%02d", tr.Number),
			kind,
			strconv.FormatInt(tr.StartLBA, 10),
			sectors,
			length,
		})
	}
	audio := toc.DiscSpan()
	total := int64(0)
	if !audio.Empty() {
		total = audio.Sectors()
	}
	return fmt.Sprintf("Disc ID: %s\n%s\n%d audio tracks, %s sectors, %s\n",
		toc.DiscID(),
		renderTable([]string{"Track", "Type", "Start", "Sectors", "Length"}, rows, 2, 3, 4),
		len(toc.AudioTracks()),
		formatCount(total),
		cdda.FormatPosition(total),
	)
}
