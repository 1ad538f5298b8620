package ripping

import (
	"context"
	"time"

	"cdrip/internal/extract"
)

// Status is a snapshot of the ripper's activity.
type Status struct {
	Running        bool      `json:"running"`
	SessionID      string    `json:"session_id,omitempty"`
	Device         string    `json:"device,omitempty"`
	Track          int       `json:"track"`
	Percent        int       `json:"percent"`
	SectorsOverall uint64    `json:"sectors_overall"`
	StartedAt      time.Time `json:"started_at,omitzero"`
}

// Status returns the current activity.
func (r *Ripper) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	if r.worker != nil {
		st.SectorsOverall = r.worker.SectorsReadOverall()
	}
	return st
}

func (r *Ripper) setRunning(worker *extract.Worker, cancel context.CancelFunc, sessionID, device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = worker
	r.cancelSession = cancel
	r.status = Status{Running: true, SessionID: sessionID, Device: device, StartedAt: time.Now()}
}

func (r *Ripper) setTrack(track int) {
	r.mu.Lock()
	r.status.Track = track
	r.status.Percent = 0
	r.mu.Unlock()
}

func (r *Ripper) setPercent(percent int) {
	r.mu.Lock()
	r.status.Percent = percent
	r.mu.Unlock()
}

func (r *Ripper) setIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Status{}
	r.worker = nil
	r.cancelSession = nil
}
