package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize int
		wantSize   int
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, 50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)
	emitted := 0
	for percent := 0; percent <= 100; percent++ {
		if s.ShouldLog(1, percent) {
			emitted++
		}
	}
	// 0,10,...,100
	if emitted != 11 {
		t.Fatalf("emitted %d samples, want 11", emitted)
	}
	if s.ShouldLog(1, 100) {
		t.Fatal("repeated 100% should not log")
	}
}

func TestProgressSampler_TrackChangeResets(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(1, 50) {
		t.Fatal("first sample should log")
	}
	if s.ShouldLog(1, 51) {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(2, 0) {
		t.Fatal("new track should log")
	}
	if s.lastTrack != 2 {
		t.Fatalf("lastTrack = %d, want 2", s.lastTrack)
	}
}
