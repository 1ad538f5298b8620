package extract

import "cdrip/internal/cdda"

// EventKind tags the notifications a Worker publishes.
type EventKind int

const (
	EventOutput EventKind = iota + 1
	EventProgress
	EventInfo
	EventWarning
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventProgress:
		return "progress"
	case EventInfo:
		return "info"
	case EventWarning:
		return "warning"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome tells how a run ended. It is only set on terminal events.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeCancelled
	OutcomeDeviceError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeDeviceError:
		return "device_error"
	default:
		return "none"
	}
}

// Progress is published after every sector that was read successfully.
type Progress struct {
	Percent        int
	Sector         int64
	SectorsOverall uint64
}

// Event is one notification from the extraction loop.
type Event struct {
	Kind  EventKind
	Track cdda.TrackSelector

	// Message and Details are set for info, warning, and error events.
	Message string
	Details string

	// Samples holds one raw sector for output events. The slice is owned by
	// the receiver.
	Samples []byte

	Progress Progress

	// Terminal marks the single event that ends a run.
	Terminal bool
	Outcome  Outcome
}
