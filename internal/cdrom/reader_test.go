package cdrom

import (
	"bytes"
	"errors"
	"testing"

	"cdrip/internal/cdda"
	"cdrip/internal/services"
)

type fakeSource struct {
	failures map[int64]int
	// jitter makes the next n reads of a frame return shifted data.
	jitter map[int64]int
	broken map[int64]bool
	reads  map[int64]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		failures: map[int64]int{},
		jitter:   map[int64]int{},
		broken:   map[int64]bool{},
		reads:    map[int64]int{},
	}
}

func frameByte(lba int64, i int) byte {
	return byte(int(lba)*7 + i%251)
}

func (f *fakeSource) ReadFrames(lba int64, n int, buf []byte) error {
	for k := 0; k < n; k++ {
		cur := lba + int64(k)
		f.reads[cur]++
		if f.broken[cur] {
			return errors.New("medium error")
		}
		if f.failures[cur] > 0 {
			f.failures[cur]--
			return errors.New("medium error")
		}
		salt := 0
		if f.jitter[cur] > 0 {
			f.jitter[cur]--
			salt = f.jitter[cur] + 1
		}
		frame := buf[k*cdda.FrameSizeRaw : (k+1)*cdda.FrameSizeRaw]
		for i := range frame {
			frame[i] = frameByte(cur, i) + byte(salt)
		}
	}
	return nil
}

func expectedFrame(lba int64) []byte {
	out := make([]byte, cdda.FrameSizeRaw)
	for i := range out {
		out[i] = frameByte(lba, i)
	}
	return out
}

type recorded struct {
	offset int64
	status cdda.Status
}

func recorder() (*[]recorded, cdda.Callback) {
	var got []recorded
	return &got, func(offset int64, status cdda.Status) {
		got = append(got, recorded{offset, status})
	}
}

func smallTOC() TOC {
	return TOC{FirstTrack: 1, LastTrack: 2, Tracks: []TrackEntry{{Number: 1, StartLBA: 0}, {Number: 2, StartLBA: 10}}, LeadOut: 20}
}

func TestReaderCleanRead(t *testing.T) {
	src := newFakeSource()
	r := NewReader(src, smallTOC())
	r.SetParanoiaMode(0)
	if _, err := r.Seek(10, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, cb := recorder()
	data, err := r.ReadSector(cb)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(data, expectedFrame(10)) {
		t.Fatalf("unexpected sector data")
	}
	if len(*got) != 1 || (*got)[0] != (recorded{10 * cdda.WordsPerFrame, cdda.StatusRead}) {
		t.Fatalf("callbacks = %+v", *got)
	}
	if src.reads[10] != 1 {
		t.Fatalf("reads = %d, want 1 in mode 0", src.reads[10])
	}
}

func TestReaderVerifiesByRereading(t *testing.T) {
	src := newFakeSource()
	src.jitter[3] = 1
	r := NewReader(src, smallTOC())
	if _, err := r.Seek(3, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, cb := recorder()
	data, err := r.ReadSector(cb)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(data, expectedFrame(3)) {
		t.Fatalf("verified data differs from the stable frame")
	}
	want := []recorded{
		{3 * cdda.WordsPerFrame, cdda.StatusVerify},
		{3 * cdda.WordsPerFrame, cdda.StatusRepair},
		{3 * cdda.WordsPerFrame, cdda.StatusRead},
	}
	if len(*got) != len(want) {
		t.Fatalf("callbacks = %+v, want %+v", *got, want)
	}
	for i := range want {
		if (*got)[i] != want[i] {
			t.Fatalf("callback %d = %+v, want %+v", i, (*got)[i], want[i])
		}
	}
}

func TestReaderRetriesReadErrors(t *testing.T) {
	src := newFakeSource()
	src.failures[5] = 2
	r := NewReader(src, smallTOC())
	r.SetParanoiaMode(0)
	if _, err := r.Seek(5, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, cb := recorder()
	if _, err := r.ReadSector(cb); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	errs := 0
	for _, rec := range *got {
		if rec.status == cdda.StatusReadErr {
			errs++
		}
	}
	if errs != 2 {
		t.Fatalf("read errors reported = %d, want 2", errs)
	}
}

func TestReaderNeverSkipFails(t *testing.T) {
	src := newFakeSource()
	src.broken[4] = true
	r := NewReader(src, smallTOC())
	r.SetMaxRetries(2)
	if _, err := r.Seek(4, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	_, cb := recorder()
	data, err := r.ReadSector(cb)
	if data != nil {
		t.Fatalf("expected nil data for an unrecoverable sector")
	}
	if !errors.Is(err, services.ErrDevice) {
		t.Fatalf("err = %v, want device error", err)
	}
	// mode 3 with two retries: one extra read for verification.
	if src.reads[4] != 4 {
		t.Fatalf("reads = %d, want 4", src.reads[4])
	}
}

func TestReaderSkipsWhenAllowed(t *testing.T) {
	src := newFakeSource()
	src.broken[4] = true
	r := NewReader(src, smallTOC())
	r.SetMaxRetries(1)
	r.SetNeverSkip(false)
	if _, err := r.Seek(4, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, cb := recorder()
	data, err := r.ReadSector(cb)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(data, make([]byte, cdda.FrameSizeRaw)) {
		t.Fatalf("skipped sector should be silent")
	}
	last := (*got)[len(*got)-2]
	if last.status != cdda.StatusSkip {
		t.Fatalf("expected skip before the final read callback, got %+v", *got)
	}
}

func TestReaderSampleOffset(t *testing.T) {
	src := newFakeSource()
	r := NewReader(src, smallTOC())
	r.SampleOffset(1)
	if _, err := r.Seek(2, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	data, err := r.ReadSector(nil)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	want := append(expectedFrame(2)[4:], expectedFrame(3)[:4]...)
	if !bytes.Equal(data, want) {
		t.Fatalf("positive offset not applied across the frame boundary")
	}
}

func TestReaderNegativeOffsetZeroFillsBeforeDisc(t *testing.T) {
	src := newFakeSource()
	r := NewReader(src, smallTOC())
	r.SampleOffset(-2)
	if _, err := r.Seek(0, cdda.SeekSet); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	data, err := r.ReadSector(nil)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(data[:8], make([]byte, 8)) {
		t.Fatalf("bytes before the disc should be zero")
	}
	if !bytes.Equal(data[8:], expectedFrame(0)[:cdda.FrameSizeRaw-8]) {
		t.Fatalf("shifted data mismatch")
	}
	if _, ok := src.reads[-1]; ok {
		t.Fatalf("source was asked for a frame before the disc")
	}
}

func TestReaderSeek(t *testing.T) {
	r := NewReader(newFakeSource(), smallTOC())
	tests := []struct {
		name    string
		sector  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"set", 5, cdda.SeekSet, 5, false},
		{"cur", 2, cdda.SeekCur, 7, false},
		{"end", -1, cdda.SeekEnd, 19, false},
		{"past end", 21, cdda.SeekSet, -1, true},
		{"before start", -1, cdda.SeekSet, -1, true},
		{"bad whence", 0, 9, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Seek(tt.sector, tt.whence)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("Seek() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderRanges(t *testing.T) {
	r := NewReader(newFakeSource(), smallTOC())
	if r.FirstSectorOfDisc() != 0 || r.LastSectorOfDisc() != 19 {
		t.Fatalf("disc range = %d..%d", r.FirstSectorOfDisc(), r.LastSectorOfDisc())
	}
	if r.FirstSectorOfTrack(2) != 10 || r.LastSectorOfTrack(2) != 19 || r.NumOfFramesOfTrack(2) != 10 {
		t.Fatalf("track 2 range wrong")
	}
	if r.NumOfFramesOfTrack(3) != -1 {
		t.Fatalf("unknown track should report -1")
	}
}
