package extract_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"cdrip/internal/cdda"
	"cdrip/internal/extract"
)

type callbackStep struct {
	offset int64
	status cdda.Status
}

// fakeTransport serves a synthetic disc. Tracks are listed as inclusive spans;
// the disc spans from the first track's start to the last track's end.
type fakeTransport struct {
	mu sync.Mutex

	tracks []cdda.Span

	// callbacks fire before the sector at the given absolute position is returned.
	callbacks map[int64][]callbackStep
	// failAt makes the read of that sector fail.
	failAt  int64
	failErr error
	seekErr error
	// beforeRead runs ahead of every read with the sector about to be read.
	beforeRead func(sector int64)
	onSeek     func()

	position     int64
	offsetCalls  []int
	paranoiaMode int
	maxRetries   int
	neverSkip    bool
	seeks        []int64
	reads        int
}

func newFakeTransport(tracks ...cdda.Span) *fakeTransport {
	return &fakeTransport{
		tracks:    tracks,
		callbacks: map[int64][]callbackStep{},
		failAt:    -1,
	}
}

func (f *fakeTransport) FirstSectorOfDisc() int64 {
	if len(f.tracks) == 0 {
		return -1
	}
	return f.tracks[0].First
}

func (f *fakeTransport) LastSectorOfDisc() int64 {
	if len(f.tracks) == 0 {
		return -1
	}
	return f.tracks[len(f.tracks)-1].Last
}

func (f *fakeTransport) FirstSectorOfTrack(track int) int64 {
	if track < 1 || track > len(f.tracks) {
		return -1
	}
	return f.tracks[track-1].First
}

func (f *fakeTransport) LastSectorOfTrack(track int) int64 {
	if track < 1 || track > len(f.tracks) {
		return -1
	}
	return f.tracks[track-1].Last
}

func (f *fakeTransport) NumOfFramesOfTrack(track int) int64 {
	if track < 1 || track > len(f.tracks) {
		return -1
	}
	return f.tracks[track-1].Sectors()
}

func (f *fakeTransport) Seek(sector int64, whence int) (int64, error) {
	if f.onSeek != nil {
		f.onSeek()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seekErr != nil {
		return -1, f.seekErr
	}
	if whence != cdda.SeekSet {
		return -1, errors.New("unsupported whence")
	}
	f.seeks = append(f.seeks, sector)
	f.position = sector
	return sector, nil
}

func (f *fakeTransport) SampleOffset(offset int) {
	f.mu.Lock()
	f.offsetCalls = append(f.offsetCalls, offset)
	f.mu.Unlock()
}

func (f *fakeTransport) SetParanoiaMode(mode int) {
	f.mu.Lock()
	f.paranoiaMode = mode
	f.mu.Unlock()
}

func (f *fakeTransport) SetMaxRetries(retries int) {
	f.mu.Lock()
	f.maxRetries = retries
	f.mu.Unlock()
}

func (f *fakeTransport) SetNeverSkip(neverSkip bool) {
	f.mu.Lock()
	f.neverSkip = neverSkip
	f.mu.Unlock()
}

func (f *fakeTransport) ReadSector(cb cdda.Callback) ([]byte, error) {
	f.mu.Lock()
	sector := f.position
	hook := f.beforeRead
	steps := f.callbacks[sector]
	fail := f.failAt == sector
	failErr := f.failErr
	f.mu.Unlock()

	if hook != nil {
		hook(sector)
	}
	for _, step := range steps {
		cb(step.offset, step.status)
	}
	cb(sector*cdda.WordsPerFrame, cdda.StatusRead)
	if fail {
		return nil, failErr
	}

	f.mu.Lock()
	f.position++
	f.reads++
	f.mu.Unlock()

	buf := make([]byte, cdda.FrameSizeRaw)
	for i := range buf {
		buf[i] = byte(sector)
	}
	return buf, nil
}

func (f *fakeTransport) on(sector int64, status cdda.Status) {
	f.callbacks[sector] = append(f.callbacks[sector], callbackStep{offset: sector * cdda.WordsPerFrame, status: status})
}

func (f *fakeTransport) onOffset(sector, offset int64, status cdda.Status) {
	f.callbacks[sector] = append(f.callbacks[sector], callbackStep{offset: offset, status: status})
}

func (f *fakeTransport) snapshotOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsetCalls...)
}

// collect drains events until the terminal one.
func collect(t *testing.T, w *extract.Worker) []extract.Event {
	t.Helper()
	var events []extract.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			events = append(events, ev)
			if ev.Terminal {
				select {
				case <-w.Done():
				case <-timeout:
					t.Fatalf("done channel not closed after terminal event")
				}
				return events
			}
		case <-timeout:
			t.Fatalf("timed out waiting for terminal event; got %d events", len(events))
			return nil
		}
	}
}

func ofKind(events []extract.Event, kind extract.EventKind) []extract.Event {
	var out []extract.Event
	for _, ev := range events {
		if ev.Kind == kind && !ev.Terminal {
			out = append(out, ev)
		}
	}
	return out
}

func terminal(t *testing.T, events []extract.Event) extract.Event {
	t.Helper()
	count := 0
	var last extract.Event
	for _, ev := range events {
		if ev.Terminal {
			count++
			last = ev
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", count)
	}
	if !events[len(events)-1].Terminal {
		t.Fatalf("terminal event is not the last event")
	}
	return last
}

func request(track cdda.TrackSelector) extract.Request {
	req := extract.DefaultRequest()
	req.Track = track
	return req
}
