package ripping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cdrip/internal/cdda"
	"cdrip/internal/cdrom"
	"cdrip/internal/config"
	"cdrip/internal/extract"
	"cdrip/internal/logging"
	"cdrip/internal/notifications"
	"cdrip/internal/services"
	"cdrip/internal/store"
	"cdrip/internal/wav"
)

// Plan selects what a rip extracts.
type Plan struct {
	// Tracks lists the tracks to extract; empty means every audio track.
	Tracks    []int
	WholeDisc bool
	// OutputDir overrides the configured output directory.
	OutputDir string
}

// EventFunc observes every worker event, e.g. to drive a progress bar.
type EventFunc func(extract.Event)

// Ripper manages the extraction workflow for one drive.
type Ripper struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	opener   Opener
	ejector  cdrom.Ejector
	notifier notifications.Service
	onEvent  EventFunc

	mu            sync.Mutex
	worker        *extract.Worker
	cancelSession context.CancelFunc
	status        Status
}

// Option customizes a Ripper.
type Option func(*Ripper)

// WithOpener replaces the drive opener.
func WithOpener(opener Opener) Option {
	return func(r *Ripper) { r.opener = opener }
}

// WithEjector replaces the tray ejector.
func WithEjector(ejector cdrom.Ejector) Option {
	return func(r *Ripper) { r.ejector = ejector }
}

// WithNotifier replaces the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(r *Ripper) { r.notifier = notifier }
}

// WithEventFunc registers an observer for worker events.
func WithEventFunc(fn EventFunc) Option {
	return func(r *Ripper) { r.onEvent = fn }
}

// New constructs a ripper with production dependencies unless overridden.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Ripper {
	r := &Ripper{
		cfg:      cfg,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "ripper"),
		opener:   DriveOpener(time.Duration(cfg.Drive.ReadyTimeout) * time.Second),
		ejector:  cdrom.NewEjector(),
		notifier: notifications.NewService(cfg),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cancel stops the track in progress. It is a no-op when nothing runs.
func (r *Ripper) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.worker == nil || !r.status.Running {
		return false
	}
	r.cancelSession()
	r.worker.Cancel()
	return true
}

// RipDisc extracts the disc in the configured drive according to plan.
func (r *Ripper) RipDisc(ctx context.Context, plan Plan) (*Summary, error) {
	device := strings.TrimSpace(r.cfg.Drive.Device)
	lock := flock.New(r.cfg.DriveLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripping", "lock drive", "Failed to create the drive lock; check state_dir permissions", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrDevice, "ripping", "lock drive", fmt.Sprintf("Drive %s is in use by another cdrip process", device), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release drive lock", logging.Error(err))
		}
	}()

	disc, err := r.opener(ctx, device)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := disc.Close(); err != nil {
			r.logger.Warn("failed to close drive", logging.Error(err))
		}
	}()

	selected, err := selectTracks(disc.TOC, plan)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SessionID: uuid.NewString(),
		Device:    device,
		DiscID:    disc.TOC.DiscID(),
		WholeDisc: plan.WholeDisc,
		StartedAt: time.Now(),
	}
	ctx = services.WithSessionID(ctx, summary.SessionID)
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldDevice, device))

	trackCount := len(selected)
	if plan.WholeDisc {
		trackCount = 1
	}
	if _, err := r.store.CreateSession(ctx, store.Session{
		ID:         summary.SessionID,
		Device:     device,
		DiscID:     summary.DiscID,
		TrackCount: trackCount,
		WholeDisc:  plan.WholeDisc,
		StartedAt:  summary.StartedAt,
	}); err != nil {
		return nil, err
	}

	outDir := plan.OutputDir
	if strings.TrimSpace(outDir) == "" {
		outDir = filepath.Join(r.cfg.Paths.OutputDir, summary.DiscID)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		r.finishSession(ctx, summary, store.SessionFailed)
		return nil, services.Wrap(services.ErrConfiguration, "ripping", "ensure output dir", "Failed to create output directory; set output_dir to a writable location", err)
	}

	logger.Info("rip session started",
		logging.String(logging.FieldEventType, "rip_started"),
		logging.String("disc_id", summary.DiscID),
		logging.Int("audio_tracks", len(disc.TOC.AudioTracks())),
		logging.Int("selected_tracks", trackCount),
		logging.Bool("whole_disc", plan.WholeDisc),
		logging.String("output_dir", outDir),
	)
	if err := r.notifier.NotifyRipStarted(ctx, summary.DiscID, trackCount); err != nil {
		logger.Warn("failed to send rip start notification", logging.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	worker := extract.New(disc.Transport, extract.WithLogger(r.logger))
	r.setRunning(worker, cancel, summary.SessionID, device)
	defer r.setIdle()

	if plan.WholeDisc {
		result := r.ripTrack(ctx, worker, summary.SessionID, cdda.WholeDisc, filepath.Join(outDir, "disc.wav"))
		summary.Results = append(summary.Results, result)
	} else {
		stopped := false
		for _, track := range disc.TOC.AudioTracks() {
			if !stopped && ctx.Err() != nil && slices.Contains(selected, track) {
				summary.interrupted = true
				stopped = true
			}
			if stopped || !slices.Contains(selected, track) {
				worker.SkipTrack(track)
				continue
			}
			result := r.ripTrack(ctx, worker, summary.SessionID, cdda.Track(track), filepath.Join(outDir, trackFileName(track)))
			summary.Results = append(summary.Results, result)
			switch {
			case result.Outcome == extract.OutcomeCancelled:
				stopped = true
			case result.Outcome != extract.OutcomeSuccess && !r.cfg.Extraction.ContinueOnError:
				stopped = true
			}
		}
	}
	summary.Duration = time.Since(summary.StartedAt)

	return summary, r.conclude(ctx, logger, summary)
}

func (r *Ripper) conclude(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	notifyCtx := context.WithoutCancel(ctx)
	switch {
	case summary.Cancelled():
		r.finishSession(ctx, summary, store.SessionCancelled)
		logger.Info("rip session cancelled", logging.String(logging.FieldEventType, "rip_cancelled"))
		return services.Wrap(services.ErrCancelled, "ripping", "rip disc", "User canceled extracting.", nil)
	case summary.Failed() > 0:
		r.finishSession(ctx, summary, store.SessionFailed)
		failure := firstFailure(summary)
		err := services.Wrap(services.ErrDevice, "ripping", "rip disc", failure.Message, detailsError(failure.Details))
		logging.ErrorWithContext(logger, "rip session failed", "rip_failed",
			logging.Int("failed_runs", summary.Failed()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "clean the disc or raise max_retries, then rip the failed tracks again"),
		)
		if nerr := r.notifier.NotifyRipFailed(notifyCtx, summary.DiscID, err); nerr != nil {
			logger.Warn("failed to send rip failure notification", logging.Error(nerr))
		}
		return err
	default:
		r.finishSession(ctx, summary, store.SessionCompleted)
		logger.Info("rip session completed",
			logging.String(logging.FieldEventType, "rip_completed"),
			logging.Int("runs", len(summary.Results)),
			logging.Int64("bytes_written", summary.Bytes()),
			logging.Int("warnings", summary.Warnings()),
			logging.Duration("duration", summary.Duration),
		)
		if err := r.notifier.NotifyRipCompleted(notifyCtx, notifications.RipSummary{
			DiscID:   summary.DiscID,
			Tracks:   len(summary.Results),
			Warnings: summary.Warnings(),
			Bytes:    summary.Bytes(),
			Duration: summary.Duration,
		}); err != nil {
			logger.Warn("rip completion notification failed", logging.Error(err))
		}
		if r.cfg.Drive.EjectAfterRip && r.ejector != nil {
			logger.Info("ejecting disc")
			if err := r.ejector.Eject(notifyCtx, summary.Device); err != nil {
				logger.Warn("failed to eject disc", logging.Error(err))
			}
		}
		return nil
	}
}

// ripTrack runs one extraction and persists its outcome.
func (r *Ripper) ripTrack(ctx context.Context, worker *extract.Worker, sessionID string, track cdda.TrackSelector, path string) TrackResult {
	ctx = services.WithTrack(ctx, track.Number())
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()
	result := TrackResult{Track: track.Number(), OutputPath: path}

	req := extract.Request{
		Track:        track,
		ParanoiaMode: r.cfg.Extraction.ParanoiaMode,
		MaxRetries:   r.cfg.Extraction.MaxRetries,
		NeverSkip:    r.cfg.Extraction.NeverSkip,
		SampleOffset: r.cfg.Drive.SampleOffset,
	}
	protocolStart := worker.ProtocolLen()

	out, err := wav.Create(path)
	if err != nil {
		result.Outcome = extract.OutcomeFailed
		result.Message = fmt.Sprintf("An error occurred while ripping track %d.", track.Number())
		result.Details = err.Error()
		r.recordRun(ctx, sessionID, &result, started, nil, extract.Stats{})
		return result
	}
	if err := worker.Configure(req); err != nil {
		_ = out.Close()
		result.Outcome = extract.OutcomeFailed
		result.Message = err.Error()
		r.recordRun(ctx, sessionID, &result, started, nil, extract.Stats{})
		return result
	}
	r.setTrack(track.Number())
	if err := worker.Start(); err != nil {
		_ = out.Close()
		result.Outcome = extract.OutcomeFailed
		result.Message = err.Error()
		r.recordRun(ctx, sessionID, &result, started, nil, extract.Stats{})
		return result
	}

	terminal, writeErr := r.consume(ctx, logger, worker, out, track)
	if err := out.Close(); err != nil && writeErr == nil {
		writeErr = err
	}

	result.Outcome = terminal.Outcome
	result.Message = terminal.Message
	result.Details = terminal.Details
	if writeErr != nil && ctx.Err() == nil {
		result.Outcome = extract.OutcomeFailed
		result.Message = fmt.Sprintf("An error occurred while ripping track %d.", track.Number())
		result.Details = writeErr.Error()
	}
	if result.Outcome == extract.OutcomeSuccess {
		result.Bytes = out.DataSize()
	} else if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial output", logging.String("path", path), logging.Error(err))
	}

	r.recordRun(ctx, sessionID, &result, started, worker.ProtocolSince(protocolStart), worker.Stats())
	return result
}

// consume drains worker events until the terminal one. Context cancellation
// is forwarded to the worker, which still delivers its terminal event.
func (r *Ripper) consume(ctx context.Context, logger *slog.Logger, worker *extract.Worker, out *wav.Writer, track cdda.TrackSelector) (extract.Event, error) {
	sampler := logging.NewProgressSampler(10)
	done := ctx.Done()
	var writeErr error
	for {
		select {
		case <-done:
			logger.Info("cancellation requested")
			worker.Cancel()
			done = nil
		case ev := <-worker.Events():
			if r.onEvent != nil {
				r.onEvent(ev)
			}
			switch {
			case ev.Terminal:
				return ev, writeErr
			case ev.Kind == extract.EventOutput:
				if writeErr != nil {
					continue
				}
				if _, err := out.Write(ev.Samples); err != nil {
					writeErr = fmt.Errorf("write wav: %w", err)
					logging.ErrorWithContext(logger, "failed to write audio", "wav_write_failed", logging.Error(err))
					worker.Cancel()
				}
			case ev.Kind == extract.EventProgress:
				r.setPercent(ev.Progress.Percent)
				if sampler.ShouldLog(track.Number(), ev.Progress.Percent) {
					logger.Info("extraction progress",
						logging.Int("percent", ev.Progress.Percent),
						logging.Int64("sector", ev.Progress.Sector),
						logging.Uint64("sectors_overall", ev.Progress.SectorsOverall),
					)
				}
			case ev.Kind == extract.EventWarning:
				logger.Warn("read warning", logging.String("detail", ev.Message))
			case ev.Kind == extract.EventInfo:
				logger.Info(ev.Message)
			}
		}
	}
}

func (r *Ripper) recordRun(ctx context.Context, sessionID string, result *TrackResult, started time.Time, lines []string, stats extract.Stats) {
	finished := time.Now()
	result.Duration = finished.Sub(started)
	result.SectorsRead = stats.SectorsRead
	result.Planned = stats.SectorsPlanned
	result.Warnings = stats.Warnings

	run := &store.Run{
		SessionID:      sessionID,
		Track:          result.Track,
		Outcome:        result.Outcome.String(),
		Message:        result.Message,
		Details:        result.Details,
		SectorsPlanned: stats.SectorsPlanned,
		SectorsRead:    stats.SectorsRead,
		Warnings:       stats.Warnings,
		BytesWritten:   result.Bytes,
		StartedAt:      started,
		FinishedAt:     finished,
	}
	if result.Outcome == extract.OutcomeSuccess {
		run.OutputPath = result.OutputPath
	}
	if err := r.store.RecordRun(context.WithoutCancel(ctx), run, lines); err != nil {
		r.logger.Warn("failed to persist run", logging.Int(logging.FieldTrack, result.Track), logging.Error(err))
		return
	}
	result.RunID = run.ID
}

func (r *Ripper) finishSession(ctx context.Context, summary *Summary, status store.SessionStatus) {
	if err := r.store.FinishSession(context.WithoutCancel(ctx), summary.SessionID, status, time.Now()); err != nil {
		r.logger.Warn("failed to finish session", logging.String(logging.FieldSessionID, summary.SessionID), logging.Error(err))
	}
}

func selectTracks(toc cdrom.TOC, plan Plan) ([]int, error) {
	audio := toc.AudioTracks()
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ripping", "select tracks", "Disc has no audio tracks", nil)
	}
	if plan.WholeDisc || len(plan.Tracks) == 0 {
		return audio, nil
	}
	selected := make([]int, 0, len(plan.Tracks))
	for _, track := range plan.Tracks {
		if !slices.Contains(audio, track) {
			return nil, services.Wrap(services.ErrValidation, "ripping", "select tracks", fmt.Sprintf("Track %d is not an audio track on this disc", track), nil)
		}
		if !slices.Contains(selected, track) {
			selected = append(selected, track)
		}
	}
	slices.Sort(selected)
	return selected, nil
}

func trackFileName(track int) string {
	return fmt.Sprintf("track%02d.wav", track)
}

func firstFailure(summary *Summary) TrackResult {
	for _, r := range summary.Results {
		if r.Outcome != extract.OutcomeSuccess {
			return r
		}
	}
	return TrackResult{}
}

func detailsError(details string) error {
	if strings.TrimSpace(details) == "" {
		return nil
	}
	return errors.New(details)
}
