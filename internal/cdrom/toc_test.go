package cdrom

import (
	"reflect"
	"testing"
	"time"

	"cdrip/internal/cdda"
)

func enhancedTOC() TOC {
	return TOC{
		FirstTrack: 1,
		LastTrack:  3,
		Tracks: []TrackEntry{
			{Number: 1, StartLBA: 0},
			{Number: 2, StartLBA: 1000},
			{Number: 3, StartLBA: 20000, Data: true},
		},
		LeadOut: 30000,
	}
}

func TestTOCSpans(t *testing.T) {
	toc := enhancedTOC()
	tests := []struct {
		track  int
		span   cdda.Span
		frames int64
	}{
		{1, cdda.Span{First: 0, Last: 999}, 1000},
		{2, cdda.Span{First: 1000, Last: 20000 - SessionGap - 1}, 20000 - SessionGap - 1000},
		{3, cdda.Span{First: -1, Last: -1}, -1},
		{9, cdda.Span{First: -1, Last: -1}, -1},
	}
	for _, tt := range tests {
		if got := toc.Span(tt.track); got != tt.span {
			t.Fatalf("Span(%d) = %+v, want %+v", tt.track, got, tt.span)
		}
		if got := toc.Frames(tt.track); got != tt.frames {
			t.Fatalf("Frames(%d) = %d, want %d", tt.track, got, tt.frames)
		}
	}
	if got := toc.DiscSpan(); got != (cdda.Span{First: 0, Last: 20000 - SessionGap - 1}) {
		t.Fatalf("DiscSpan() = %+v", got)
	}
	if got := toc.AudioTracks(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("AudioTracks() = %v", got)
	}
}

func TestTOCLastTrackEndsAtLeadOut(t *testing.T) {
	toc := TOC{FirstTrack: 1, LastTrack: 2, Tracks: []TrackEntry{{Number: 1, StartLBA: 0}, {Number: 2, StartLBA: 150}}, LeadOut: 300}
	if got := toc.Span(2); got != (cdda.Span{First: 150, Last: 299}) {
		t.Fatalf("Span(2) = %+v", got)
	}
	if got := toc.Duration(2); got != 2*time.Second {
		t.Fatalf("Duration(2) = %s", got)
	}
}

func TestTOCWithoutAudio(t *testing.T) {
	toc := TOC{FirstTrack: 1, LastTrack: 1, Tracks: []TrackEntry{{Number: 1, StartLBA: 0, Data: true}}, LeadOut: 5000}
	if !toc.DiscSpan().Empty() {
		t.Fatalf("data-only disc should have an empty audio span")
	}
}

func TestDiscID(t *testing.T) {
	toc := TOC{FirstTrack: 1, LastTrack: 1, Tracks: []TrackEntry{{Number: 1, StartLBA: 0}}, LeadOut: 7500}
	if got := toc.DiscID(); got != "02006401" {
		t.Fatalf("DiscID() = %q, want 02006401", got)
	}
	if got := (TOC{}).DiscID(); got != "" {
		t.Fatalf("empty TOC DiscID() = %q", got)
	}
}
