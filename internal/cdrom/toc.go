package cdrom

import (
	"fmt"
	"time"

	"cdrip/internal/cdda"
)

// SessionGap is the number of sectors between the end of the audio session
// and the first data track of an Enhanced CD (lead-out, lead-in, pregap).
const SessionGap = 11400

// LeadOutTrack is the pseudo track number of the lead-out in TOC requests.
const LeadOutTrack = 0xAA

// TrackEntry describes one TOC entry.
type TrackEntry struct {
	Number   int
	StartLBA int64
	Data     bool
}

// TOC is the table of contents of the loaded disc.
type TOC struct {
	FirstTrack int
	LastTrack  int
	Tracks     []TrackEntry
	// LeadOut is the LBA right after the last sector of the program area.
	LeadOut int64
}

// Track returns the entry for a track number.
func (t TOC) Track(n int) (TrackEntry, bool) {
	for _, tr := range t.Tracks {
		if tr.Number == n {
			return tr, true
		}
	}
	return TrackEntry{}, false
}

func (t TOC) nextStart(n int) (int64, bool) {
	for i, tr := range t.Tracks {
		if tr.Number != n {
			continue
		}
		if i+1 < len(t.Tracks) {
			next := t.Tracks[i+1]
			if next.Data && !tr.Data {
				return next.StartLBA - SessionGap, true
			}
			return next.StartLBA, true
		}
		return t.LeadOut, true
	}
	return 0, false
}

// Span returns the inclusive sector range of an audio track. Unknown and
// data tracks yield an empty span.
func (t TOC) Span(n int) cdda.Span {
	tr, ok := t.Track(n)
	if !ok || tr.Data {
		return cdda.Span{First: -1, Last: -1}
	}
	end, _ := t.nextStart(n)
	return cdda.Span{First: tr.StartLBA, Last: end - 1}
}

// Frames returns the number of sectors of an audio track, or -1 when the
// track is unknown or carries data.
func (t TOC) Frames(n int) int64 {
	span := t.Span(n)
	if span.Empty() {
		return -1
	}
	return span.Sectors()
}

// AudioTracks lists the audio track numbers in disc order.
func (t TOC) AudioTracks() []int {
	var out []int
	for _, tr := range t.Tracks {
		if !tr.Data {
			out = append(out, tr.Number)
		}
	}
	return out
}

// DiscSpan covers the first to the last audio sector of the disc.
func (t TOC) DiscSpan() cdda.Span {
	audio := t.AudioTracks()
	if len(audio) == 0 {
		return cdda.Span{First: -1, Last: -1}
	}
	return cdda.Span{First: t.Span(audio[0]).First, Last: t.Span(audio[len(audio)-1]).Last}
}

// Duration returns the playing time of an audio track.
func (t TOC) Duration(n int) time.Duration {
	frames := t.Frames(n)
	if frames <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / cdda.SectorsPerSecond
}

// DiscID computes the freedb disc identifier.
func (t TOC) DiscID() string {
	if len(t.Tracks) == 0 {
		return ""
	}
	var n int64
	for _, tr := range t.Tracks {
		n += digitSum((tr.StartLBA + 150) / cdda.SectorsPerSecond)
	}
	total := (t.LeadOut+150)/cdda.SectorsPerSecond - (t.Tracks[0].StartLBA+150)/cdda.SectorsPerSecond
	id := uint32(n%0xff)<<24 | uint32(total)<<8 | uint32(len(t.Tracks))
	return fmt.Sprintf("%08x", id)
}

func digitSum(v int64) int64 {
	var sum int64
	for v > 0 {
		sum += v % 10
		v /= 10
	}
	return sum
}
