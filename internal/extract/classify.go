package extract

import (
	"fmt"

	"cdrip/internal/cdda"
)

// ReadKind is the classification of a read-correction callback.
type ReadKind int

const (
	KindRead ReadKind = iota + 1
	KindVerify
	KindFixupEdge
	KindFixupAtom
	KindScratch
	KindRepair
	KindSkip
	KindDrift
	KindBackoff
	KindOverlap
	KindFixupDropped
	KindFixupDuped
	KindReadError
)

var statusKinds = map[cdda.Status]ReadKind{
	cdda.StatusRead:         KindRead,
	cdda.StatusVerify:       KindVerify,
	cdda.StatusFixupEdge:    KindFixupEdge,
	cdda.StatusFixupAtom:    KindFixupAtom,
	cdda.StatusScratch:      KindScratch,
	cdda.StatusRepair:       KindRepair,
	cdda.StatusSkip:         KindSkip,
	cdda.StatusDrift:        KindDrift,
	cdda.StatusBackoff:      KindBackoff,
	cdda.StatusOverlap:      KindOverlap,
	cdda.StatusFixupDropped: KindFixupDropped,
	cdda.StatusFixupDuped:   KindFixupDuped,
	cdda.StatusReadErr:      KindReadError,
}

var kindLabels = map[ReadKind]string{
	KindRead:         "Read",
	KindVerify:       "Verify",
	KindFixupEdge:    "Fixed edge jitter",
	KindFixupAtom:    "Fixed atom jitter",
	KindScratch:      "SCRATCH DETECTED",
	KindRepair:       "Repair",
	KindSkip:         "SKIP",
	KindDrift:        "Drift",
	KindBackoff:      "Backoff",
	KindOverlap:      "Overlap",
	KindFixupDropped: "Fixup dropped",
	KindFixupDuped:   "Fixup duped",
	KindReadError:    "READ ERROR",
}

func (k ReadKind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ReadEvent is a classified callback.
type ReadEvent struct {
	Kind ReadKind
	// Sector is the absolute sector derived from the reported word offset.
	Sector int64
	// Relative is the worker's current sector when the callback fired.
	Relative int64
	// TrackTime is Relative rendered as MM:SS.
	TrackTime string
	// Overlap is the overlap byte count, set only for KindOverlap.
	Overlap int64
}

// Classify maps a raw callback into a ReadEvent. It reports false for codes
// that carry no audit value, including the negative sentinels some
// read-correction libraries emit.
func Classify(offset int64, status cdda.Status, current int64) (ReadEvent, bool) {
	kind, ok := statusKinds[status]
	if !ok {
		return ReadEvent{}, false
	}
	ev := ReadEvent{
		Kind:      kind,
		Relative:  current,
		TrackTime: cdda.FormatPosition(current),
	}
	if kind == KindOverlap {
		ev.Overlap = offset
	} else {
		ev.Sector = offset / cdda.WordsPerFrame
	}
	return ev, true
}

func (e ReadEvent) position() string {
	return fmt.Sprintf("absolute sector %d, relative sector %d, track time pos %s", e.Sector, e.Relative, e.TrackTime)
}

// ProtocolLine renders the audit line for the event. Plain reads produce none.
func (e ReadEvent) ProtocolLine() (string, bool) {
	switch e.Kind {
	case KindRead:
		return "", false
	case KindOverlap:
		return fmt.Sprintf("Overlap of %d bytes (relative sector %d, track time pos %s)", e.Overlap, e.Relative, e.TrackTime), true
	default:
		return fmt.Sprintf("%s (%s)", e.Kind, e.position()), true
	}
}

// WarningText renders the user-facing warning for kinds that raise one.
// Latching is the worker's job.
func (e ReadEvent) WarningText() (string, bool) {
	switch e.Kind {
	case KindScratch:
		return fmt.Sprintf("Scratch detected (%s)", e.position()), true
	case KindReadError:
		return fmt.Sprintf("Read error detected (%s)", e.position()), true
	case KindSkip:
		return fmt.Sprintf("Skip sectors (%s)", e.position()), true
	default:
		return "", false
	}
}
