package cdda

import (
	"fmt"
	"io"
)

const (
	// FrameSizeRaw is the size of one raw audio sector in bytes.
	FrameSizeRaw = 2352
	// WordsPerFrame is the number of 16-bit words in a raw audio sector.
	WordsPerFrame = FrameSizeRaw / 2
	// SamplesPerFrame is the number of stereo sample pairs in a raw sector.
	SamplesPerFrame = FrameSizeRaw / 4
	// SectorsPerSecond is the Red Book playback rate.
	SectorsPerSecond = 75
	// SampleRate is the CD audio sample rate in Hz.
	SampleRate = SamplesPerFrame * SectorsPerSecond
)

// Seek whence values accepted by Transport.Seek.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// TrackSelector picks what a run extracts: WholeDisc or a 1-based track.
type TrackSelector int

// WholeDisc selects every audio sector of the disc as a single image.
const WholeDisc TrackSelector = 0

// Track returns the selector for a 1-based track number.
func Track(n int) TrackSelector {
	return TrackSelector(n)
}

// IsWholeDisc reports whether the selector covers the entire disc.
func (t TrackSelector) IsWholeDisc() bool {
	return t <= WholeDisc
}

// Number returns the track number, or 0 for WholeDisc.
func (t TrackSelector) Number() int {
	if t.IsWholeDisc() {
		return 0
	}
	return int(t)
}

func (t TrackSelector) String() string {
	if t.IsWholeDisc() {
		return "disc"
	}
	return fmt.Sprintf("track %d", int(t))
}

// Span is an inclusive range of absolute sectors.
type Span struct {
	First int64
	Last  int64
}

// Empty reports whether no sector can be read from the span. Negative bounds
// are how transports signal an unknown track.
func (s Span) Empty() bool {
	return s.First < 0 || s.Last < 0 || s.First > s.Last
}

// Sectors returns the number of sectors covered by the span.
func (s Span) Sectors() int64 {
	if s.Empty() {
		return 0
	}
	return s.Last - s.First + 1
}

// FormatPosition renders a sector count as MM:SS at 75 sectors per second.
func FormatPosition(sectors int64) string {
	if sectors < 0 {
		sectors = 0
	}
	seconds := sectors / SectorsPerSecond
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
