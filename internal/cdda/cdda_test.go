package cdda

import "testing"

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		sectors int64
		want    string
	}{
		{0, "00:00"},
		{74, "00:00"},
		{75, "00:01"},
		{75 * 61, "01:01"},
		{75*60*74 + 75*33, "74:33"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatPosition(tt.sectors); got != tt.want {
			t.Fatalf("FormatPosition(%d) = %q, want %q", tt.sectors, got, tt.want)
		}
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		name    string
		span    Span
		empty   bool
		sectors int64
	}{
		{"single sector", Span{First: 10, Last: 10}, false, 1},
		{"regular", Span{First: 0, Last: 99}, false, 100},
		{"negative first", Span{First: -1, Last: 99}, true, 0},
		{"negative last", Span{First: 0, Last: -1}, true, 0},
		{"inverted", Span{First: 10, Last: 9}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.span.Empty(); got != tt.empty {
				t.Fatalf("Empty() = %v, want %v", got, tt.empty)
			}
			if got := tt.span.Sectors(); got != tt.sectors {
				t.Fatalf("Sectors() = %d, want %d", got, tt.sectors)
			}
		})
	}
}

func TestTrackSelector(t *testing.T) {
	if !WholeDisc.IsWholeDisc() || WholeDisc.Number() != 0 {
		t.Fatal("WholeDisc should select the disc")
	}
	sel := Track(3)
	if sel.IsWholeDisc() || sel.Number() != 3 {
		t.Fatalf("unexpected selector %v", sel)
	}
	if sel.String() != "track 3" {
		t.Fatalf("String() = %q", sel.String())
	}
}

func TestStatusString(t *testing.T) {
	if StatusScratch.String() != "scratch" {
		t.Fatalf("unexpected name %q", StatusScratch.String())
	}
	if Status(-2).String() != "status(-2)" {
		t.Fatalf("unexpected name %q", Status(-2).String())
	}
}
