package extract

import "cdrip/internal/cdda"

// Request configures one extraction run. It is copied when the run starts,
// so later changes only affect the next run.
type Request struct {
	Track        cdda.TrackSelector
	ParanoiaMode int
	MaxRetries   int
	NeverSkip    bool
	// SampleOffset is applied once per worker lifetime, on the first run
	// that carries a non-zero value.
	SampleOffset int
}

// DefaultRequest returns the policy a fresh worker starts with.
func DefaultRequest() Request {
	return Request{
		Track:        cdda.Track(1),
		ParanoiaMode: 3,
		MaxRetries:   20,
		NeverSkip:    true,
	}
}
