package store

import "time"

// SessionStatus tracks the lifecycle of a rip session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is one invocation of a disc rip.
type Session struct {
	ID         string        `json:"id" yaml:"id"`
	Device     string        `json:"device" yaml:"device"`
	DiscID     string        `json:"disc_id" yaml:"disc_id"`
	TrackCount int           `json:"track_count" yaml:"track_count"`
	WholeDisc  bool          `json:"whole_disc" yaml:"whole_disc"`
	Status     SessionStatus `json:"status" yaml:"status"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Run records the outcome of extracting one track, or the whole disc when
// Track is 0.
type Run struct {
	ID             int64     `json:"id" yaml:"id"`
	SessionID      string    `json:"session_id" yaml:"session_id"`
	Track          int       `json:"track" yaml:"track"`
	Outcome        string    `json:"outcome" yaml:"outcome"`
	Message        string    `json:"message" yaml:"message"`
	Details        string    `json:"details,omitempty" yaml:"details,omitempty"`
	SectorsPlanned uint64    `json:"sectors_planned" yaml:"sectors_planned"`
	SectorsRead    uint64    `json:"sectors_read" yaml:"sectors_read"`
	Warnings       int       `json:"warnings" yaml:"warnings"`
	OutputPath     string    `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	BytesWritten   int64     `json:"bytes_written" yaml:"bytes_written"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at" yaml:"finished_at"`
}
