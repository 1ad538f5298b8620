package ripping

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cdrip/internal/extract"
)

// TrackResult is the outcome of one extraction run.
type TrackResult struct {
	Track       int
	RunID       int64
	Outcome     extract.Outcome
	Message     string
	Details     string
	OutputPath  string
	Bytes       int64
	SectorsRead uint64
	Planned     uint64
	Warnings    int
	Duration    time.Duration
}

// Summary reports a finished session.
type Summary struct {
	SessionID string
	Device    string
	DiscID    string
	WholeDisc bool
	Results   []TrackResult
	StartedAt time.Time
	Duration  time.Duration

	// interrupted is set when a cancel lands between two runs.
	interrupted bool
}

// Failed counts runs that did not succeed, cancellations included.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome != extract.OutcomeSuccess {
			n++
		}
	}
	return n
}

// Cancelled reports whether the session stopped on a user cancel.
func (s *Summary) Cancelled() bool {
	if s.interrupted {
		return true
	}
	for _, r := range s.Results {
		if r.Outcome == extract.OutcomeCancelled {
			return true
		}
	}
	return false
}

// Bytes sums the audio bytes written.
func (s *Summary) Bytes() int64 {
	var total int64
	for _, r := range s.Results {
		total += r.Bytes
	}
	return total
}

// Warnings sums the read warnings of all runs.
func (s *Summary) Warnings() int {
	total := 0
	for _, r := range s.Results {
		total += r.Warnings
	}
	return total
}

// String renders a short multi-line report.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s)\n", s.SessionID, s.DiscID)
	for _, r := range s.Results {
		label := fmt.Sprintf("Track %02d", r.Track)
		if r.Track == 0 {
			label = "Disc"
		}
		fmt.Fprintf(&b, "  %s  %-10s %8s  %d warnings  %s\n",
			label, r.Outcome, humanize.Bytes(uint64(max(r.Bytes, 0))), r.Warnings, r.Message)
	}
	fmt.Fprintf(&b, "%d runs, %d failed, %s written in %s",
		len(s.Results), s.Failed(), humanize.Bytes(uint64(max(s.Bytes(), 0))), s.Duration.Round(time.Second))
	return b.String()
}
