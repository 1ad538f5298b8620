package extract

import "sync/atomic"

// CancelToken is a flag shared between the caller and the extraction loop.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel sets the flag. Calling it repeatedly has no further effect.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether Cancel was called since the last Reset.
func (t *CancelToken) Cancelled() bool {
	return t.flag.Load()
}

// Reset clears the flag for the next run.
func (t *CancelToken) Reset() {
	t.flag.Store(false)
}
