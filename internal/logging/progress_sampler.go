package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the track changes or the percentage crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize int
	lastTrack  int
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the track changes.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastTrack: -1, lastBucket: -1}
}

// ShouldLog reports whether a progress sample should be logged.
func (s *ProgressSampler) ShouldLog(track, percent int) bool {
	if s == nil {
		return true
	}
	emit := false
	if track != s.lastTrack {
		s.lastTrack = track
		s.lastBucket = -1
		emit = true
	}
	if percent > 100 {
		percent = 100
	}
	if percent >= 0 {
		if bucket := percent / s.bucketSize; bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastTrack = -1
	s.lastBucket = -1
}
