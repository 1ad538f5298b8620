package extract

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"cdrip/internal/cdda"
	"cdrip/internal/logging"
)

const defaultEventBuffer = 256

// Option configures a Worker.
type Option func(*Worker)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(size int) Option {
	return func(w *Worker) {
		if size >= 0 {
			w.bufferSize = size
		}
	}
}

// Stats summarizes the current or most recent run.
type Stats struct {
	Track          cdda.TrackSelector
	SectorsPlanned uint64
	SectorsRead    uint64
	// Reads counts StatusRead callbacks; LastReadSector is the last sector they reported.
	Reads          uint64
	LastReadSector int64
	// Overlap is the most recent overlap byte count.
	Overlap  int64
	Warnings int
	Kinds    map[ReadKind]uint64
}

// Worker extracts one track (or the whole disc) per run. Runs are sequential;
// the worker can be reused once the previous run delivered its terminal event.
type Worker struct {
	transport  cdda.Transport
	logger     *slog.Logger
	bufferSize int
	events     chan Event

	mu      sync.Mutex
	request Request
	done    chan struct{}

	// emitMu keeps the events of consecutive runs from interleaving.
	emitMu  sync.Mutex
	active  atomic.Bool
	looping atomic.Bool
	cancel  CancelToken
	overall atomic.Uint64

	protocol Protocol

	statsMu sync.Mutex
	stats   Stats

	// offsetApplied is only touched by the run goroutine.
	offsetApplied bool
}

// runState is owned by the goroutine of one run.
type runState struct {
	request          Request
	span             cdda.Span
	current          int64
	readInTrack      uint64
	planned          uint64
	failed           bool
	readErr          error
	scratchFlagged   bool
	readErrorFlagged bool
}

// New binds a worker to a transport. A nil transport is accepted; every
// Start then ends with an OutcomeDeviceError event.
func New(transport cdda.Transport, opts ...Option) *Worker {
	w := &Worker{
		transport:  transport,
		logger:     logging.NewNop(),
		bufferSize: defaultEventBuffer,
		request:    DefaultRequest(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.String(logging.FieldComponent, "extract"))
	w.events = make(chan Event, w.bufferSize)
	return w
}

// Events returns the channel every notification is delivered on. The channel
// lives as long as the worker and is never closed.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Done returns a channel closed once the latest run delivered its terminal
// event. Before the first Start it is already closed.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return w.done
}

// Configure sets the request for the next run.
func (w *Worker) Configure(req Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active.Load() {
		return ErrBusy
	}
	w.request = req
	return nil
}

// Request returns the configured request.
func (w *Worker) Request() Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.request
}

// Start launches a run and returns immediately. Starting while a cancelled
// run is still winding down is a no-op; starting while a run is in progress
// returns ErrBusy. A Cancel issued while idle stops the next run before its
// first sector.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active.Load() {
		if w.cancel.Cancelled() {
			return nil
		}
		return ErrBusy
	}
	w.active.Store(true)
	done := make(chan struct{})
	w.done = done
	go w.run(w.request, done)
	return nil
}

// Cancel asks the running loop to stop before its next sector.
func (w *Worker) Cancel() {
	w.cancel.Cancel()
}

// IsProcessing reports whether the sector loop is running and not cancelled.
func (w *Worker) IsProcessing() bool {
	return w.looping.Load() && !w.cancel.Cancelled()
}

// Protocol returns a snapshot of the extraction protocol.
func (w *Worker) Protocol() []string {
	return w.protocol.Lines()
}

// ProtocolSince returns the protocol lines appended after the first n.
func (w *Worker) ProtocolSince(n int) []string {
	return w.protocol.Since(n)
}

// ProtocolLen returns the number of protocol lines recorded so far.
func (w *Worker) ProtocolLen() int {
	return w.protocol.Len()
}

// SkipTrack accounts for a track that will not be read so that overall
// progress stays consistent across a multi-track session.
func (w *Worker) SkipTrack(track int) {
	if w.transport == nil {
		return
	}
	if frames := w.transport.NumOfFramesOfTrack(track); frames > 0 {
		w.overall.Add(uint64(frames))
	}
}

// SectorsReadOverall returns the sectors read or skipped across all runs.
func (w *Worker) SectorsReadOverall() uint64 {
	return w.overall.Load()
}

// Stats returns a copy of the current run statistics.
func (w *Worker) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	out := w.stats
	out.Kinds = make(map[ReadKind]uint64, len(w.stats.Kinds))
	for k, v := range w.stats.Kinds {
		out.Kinds[k] = v
	}
	return out
}

func (w *Worker) run(req Request, done chan struct{}) {
	defer close(done)

	logger := w.logger.With(logging.Int(logging.FieldTrack, req.Track.Number()))

	if w.transport == nil {
		logging.ErrorWithContext(logger, "extraction transport unavailable", "extract_device_missing",
			logging.String(logging.FieldErrorHint, "check the drive and that the disc is readable"),
		)
		w.finish(Event{
			Kind:     EventError,
			Track:    req.Track,
			Message:  "Internal device error.",
			Details:  "Check your device and make a bug report.",
			Terminal: true,
			Outcome:  OutcomeDeviceError,
		})
		return
	}

	st := &runState{request: req}

	if req.SampleOffset != 0 && !w.offsetApplied {
		w.transport.SampleOffset(req.SampleOffset)
		w.offsetApplied = true
		logger.Debug("sample offset applied", logging.Int("sample_offset", req.SampleOffset))
	}

	if req.Track.IsWholeDisc() {
		st.span = cdda.Span{First: w.transport.FirstSectorOfDisc(), Last: w.transport.LastSectorOfDisc()}
	} else {
		st.span = cdda.Span{First: w.transport.FirstSectorOfTrack(req.Track.Number()), Last: w.transport.LastSectorOfTrack(req.Track.Number())}
	}
	w.resetStats(req.Track, uint64(st.span.Sectors()))

	if st.span.Empty() {
		logger.Info("nothing to extract",
			logging.Int64("first_sector", st.span.First),
			logging.Int64("last_sector", st.span.Last),
		)
		w.finish(Event{Kind: EventInfo, Track: req.Track, Message: "Extracting finished.", Terminal: true, Outcome: OutcomeSuccess})
		return
	}

	st.planned = uint64(st.span.Sectors())
	st.current = st.span.First

	w.transport.SetParanoiaMode(req.ParanoiaMode)
	w.transport.SetNeverSkip(req.NeverSkip)
	w.transport.SetMaxRetries(req.MaxRetries)
	if _, err := w.transport.Seek(st.span.First, cdda.SeekSet); err != nil {
		logging.ErrorWithContext(logger, "seek to first sector failed", "extract_seek_failed",
			logging.Int64("sector", st.span.First),
			logging.Error(err),
		)
		w.finish(Event{
			Kind:     EventError,
			Track:    req.Track,
			Message:  fmt.Sprintf("An error occurred while ripping track %d.", req.Track.Number()),
			Details:  err.Error(),
			Terminal: true,
			Outcome:  OutcomeFailed,
		})
		return
	}

	if req.Track.IsWholeDisc() {
		w.emit(Event{Kind: EventInfo, Track: req.Track, Message: "Ripping whole CD as single track."})
	} else {
		w.emit(Event{
			Kind:    EventInfo,
			Track:   req.Track,
			Message: fmt.Sprintf("Ripping track %d (%s)...", req.Track.Number(), cdda.FormatPosition(int64(st.planned))),
		})
	}
	w.protocol.Append(fmt.Sprintf("Start reading track %d with %d sectors", req.Track.Number(), st.planned))
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "extract_started"),
		logging.Int64("first_sector", st.span.First),
		logging.Int64("last_sector", st.span.Last),
		logging.Uint64("sectors_planned", st.planned),
		logging.Int("paranoia_mode", req.ParanoiaMode),
		logging.Int("max_retries", req.MaxRetries),
		logging.Bool("never_skip", req.NeverSkip),
	)

	w.loop(st, logger)

	w.protocol.Append("Reading finished")
	w.finish(w.outcomeEvent(st, logger))
}

func (w *Worker) loop(st *runState, logger *slog.Logger) {
	cb := func(offset int64, status cdda.Status) {
		if ev, ok := Classify(offset, status, st.current); ok {
			w.observe(st, ev, logger)
		}
	}

	w.looping.Store(true)
	defer w.looping.Store(false)

	for st.current <= st.span.Last {
		if w.cancel.Cancelled() {
			logger.Debug("extraction interrupted", logging.Int64("sector", st.current))
			return
		}

		samples, err := w.transport.ReadSector(cb)
		if samples == nil {
			st.failed = true
			st.readErr = err
			logging.ErrorWithContext(logger, "unrecoverable sector read", "extract_read_failed",
				logging.Int64("sector", st.current),
				logging.Any("cause", err),
			)
			return
		}

		st.current++
		block := make([]byte, cdda.FrameSizeRaw)
		copy(block, samples)
		w.emit(Event{Kind: EventOutput, Track: st.request.Track, Samples: block})

		st.readInTrack++
		overall := w.overall.Add(1)
		w.statsMu.Lock()
		w.stats.SectorsRead = st.readInTrack
		w.statsMu.Unlock()

		w.emit(Event{
			Kind:  EventProgress,
			Track: st.request.Track,
			Progress: Progress{
				Percent:        percentOf(st.readInTrack, st.planned),
				Sector:         st.current,
				SectorsOverall: overall,
			},
		})
	}
}

func (w *Worker) outcomeEvent(st *runState, logger *slog.Logger) Event {
	track := st.request.Track
	ev := Event{Kind: EventError, Track: track, Terminal: true}
	switch {
	case w.cancel.Cancelled():
		ev.Message = "User canceled extracting."
		ev.Outcome = OutcomeCancelled
	case st.failed:
		ev.Message = fmt.Sprintf("An error occurred while ripping track %d.", track.Number())
		ev.Outcome = OutcomeFailed
		if st.readErr != nil {
			ev.Details = st.readErr.Error()
		}
	default:
		ev.Kind = EventInfo
		ev.Outcome = OutcomeSuccess
		if track.IsWholeDisc() {
			ev.Message = "Ripping OK."
		} else {
			ev.Message = fmt.Sprintf("Ripping OK (Track %d).", track.Number())
		}
	}
	logger.Info("extraction finished",
		logging.String(logging.FieldEventType, "extract_finished"),
		logging.String("outcome", ev.Outcome.String()),
		logging.Uint64("sectors_read", st.readInTrack),
		logging.Uint64("sectors_planned", st.planned),
	)
	return ev
}

// observe applies one classified callback: protocol line, latched warnings,
// statistics.
func (w *Worker) observe(st *runState, ev ReadEvent, logger *slog.Logger) {
	w.statsMu.Lock()
	if w.stats.Kinds == nil {
		w.stats.Kinds = make(map[ReadKind]uint64)
	}
	w.stats.Kinds[ev.Kind]++
	switch ev.Kind {
	case KindRead:
		w.stats.Reads++
		w.stats.LastReadSector = ev.Sector
	case KindOverlap:
		w.stats.Overlap = ev.Overlap
	}
	w.statsMu.Unlock()

	if ev.Kind == KindRead {
		st.scratchFlagged = false
		st.readErrorFlagged = false
		return
	}

	if line, ok := ev.ProtocolLine(); ok {
		w.protocol.Append(line)
		logger.Debug("read anomaly",
			logging.String("kind", ev.Kind.String()),
			logging.Int64("absolute_sector", ev.Sector),
			logging.Int64("relative_sector", ev.Relative),
		)
	}

	raise := false
	switch ev.Kind {
	case KindScratch:
		raise = !st.scratchFlagged
		st.scratchFlagged = true
	case KindReadError:
		raise = !st.readErrorFlagged
		st.readErrorFlagged = true
	case KindSkip:
		raise = true
	}
	if !raise {
		return
	}
	if text, ok := ev.WarningText(); ok {
		w.statsMu.Lock()
		w.stats.Warnings++
		w.statsMu.Unlock()
		logging.WarnWithContext(logger, text, "extract_"+eventTypeSuffix(ev.Kind),
			logging.String(logging.FieldImpact, "samples around this sector may be damaged"),
		)
		w.emit(Event{Kind: EventWarning, Track: st.request.Track, Message: text})
	}
}

func (w *Worker) resetStats(track cdda.TrackSelector, planned uint64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats = Stats{Track: track, SectorsPlanned: planned, Kinds: make(map[ReadKind]uint64)}
}

func (w *Worker) emit(ev Event) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.events <- ev
}

// finish clears the cancel flag, marks the worker idle and delivers the
// terminal event. Holding emitMu keeps a run started right after active
// clears from publishing ahead of this event.
func (w *Worker) finish(ev Event) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.cancel.Reset()
	w.active.Store(false)
	w.events <- ev
}

func percentOf(read, planned uint64) int {
	if planned == 0 {
		return 0
	}
	p := int(math.Round(100 * float64(read) / float64(planned)))
	if p > 100 {
		p = 100
	}
	return p
}

func eventTypeSuffix(kind ReadKind) string {
	switch kind {
	case KindScratch:
		return "scratch"
	case KindReadError:
		return "read_error"
	case KindSkip:
		return "skip"
	default:
		return "anomaly"
	}
}
