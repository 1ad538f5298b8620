package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cdrip/internal/config"
	"cdrip/internal/logging"
	"cdrip/internal/notifications"
	"cdrip/internal/ripping"
	"cdrip/internal/services"
	"cdrip/internal/store"
)

// Daemon coordinates disc detection, the API and retention, and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	ripper   *ripping.Ripper
	notifier notifications.Service

	lock      *flock.Flock
	monitor   *discMonitor
	api       *apiServer
	retention *retentionJob

	running atomic.Bool
	ripping atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	rips    sync.WaitGroup

	startedAt time.Time
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithRipper replaces the ripper used for automatic rips.
func WithRipper(r *ripping.Ripper) Option {
	return func(d *Daemon) { d.ripper = r }
}

// WithNotifier replaces the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     time.Time      `json:"started_at,omitzero"`
	Device        string         `json:"device"`
	AutoRip       bool           `json:"auto_rip"`
	DatabasePath  string         `json:"database_path"`
	LockFilePath  string         `json:"lock_file_path"`
	APIAddress    string         `json:"api_address,omitempty"`
	DiscMonitor   bool           `json:"disc_monitor"`
	NextRetention *time.Time     `json:"next_retention,omitempty"`
	Rip           ripping.Status `json:"rip"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		store:  st,
		lock:   flock.New(cfg.DaemonLockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	if d.ripper == nil {
		d.ripper = ripping.New(cfg, st, logger, ripping.WithNotifier(d.notifier))
	}
	d.monitor = newDiscMonitor(cfg.Drive.Device, logger, d.handleDisc, d.ripping.Load)
	d.api = newAPIServer(cfg, d, logger)
	d.retention = newRetentionJob(cfg, st, logger)
	return d, nil
}

// markInterrupted fails sessions on the configured drive that a dead process
// left running. A held drive lock means a live rip owns them.
func (d *Daemon) markInterrupted(ctx context.Context) {
	device := strings.TrimSpace(d.cfg.Drive.Device)
	driveLock := flock.New(d.cfg.DriveLockPath())
	locked, err := driveLock.TryLock()
	if err != nil {
		d.logger.Warn("failed to check drive lock", logging.Error(err))
		return
	}
	if !locked {
		d.logger.Info("drive busy, leaving running sessions untouched", logging.String(logging.FieldDevice, device))
		return
	}
	defer func() {
		if err := driveLock.Unlock(); err != nil {
			d.logger.Warn("failed to release drive lock", logging.Error(err))
		}
	}()

	n, err := d.store.MarkInterrupted(ctx, device)
	if err != nil {
		d.logger.Warn("failed to mark interrupted sessions", logging.Error(err))
		return
	}
	if n > 0 {
		logging.WarnWithContext(d.logger, "marked interrupted sessions as failed", "sessions_interrupted",
			logging.Int64("sessions", n),
			logging.String(logging.FieldErrorHint, "re-rip the affected discs"),
			logging.String(logging.FieldImpact, "previous rips did not finish"),
		)
	}
}

// Start acquires the daemon lock and launches background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "daemon", "lock", "another cdrip daemon instance is already running", nil)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now()

	d.markInterrupted(d.ctx)

	if err := d.retention.start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start retention: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.retention.stop()
		d.abortStart()
		return fmt.Errorf("start api: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.api.stop()
		d.retention.stop()
		d.abortStart()
		return fmt.Errorf("start disc monitor: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("cdrip daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lock.Path()),
		logging.String(logging.FieldDevice, d.cfg.Drive.Device),
		logging.Bool("auto_rip", d.cfg.Daemon.AutoRip),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop cancels any rip in progress, stops background services and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.api.stop()
	d.retention.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.rips.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("cdrip daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Status reports the daemon's current state.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     d.startedAt,
		Device:        d.cfg.Drive.Device,
		AutoRip:       d.cfg.Daemon.AutoRip,
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lock.Path(),
		APIAddress:    d.api.addr(),
		DiscMonitor:   d.monitor.Running(),
		NextRetention: d.retention.next(),
		Rip:           d.ripper.Status(),
	}
}

// CancelRip stops the rip in progress. It reports false when idle.
func (d *Daemon) CancelRip() bool {
	return d.ripper.Cancel()
}

// handleDisc reacts to an inserted disc. With auto_rip it starts a rip of every
// audio track in the background and reports whether one was started.
func (d *Daemon) handleDisc(ctx context.Context, device string) bool {
	logger := d.logger.With(logging.String(logging.FieldDevice, device))
	if err := d.notifier.NotifyDiscDetected(ctx, device, ""); err != nil {
		logger.Warn("disc detection notification failed", logging.Error(err))
	}
	if !d.cfg.Daemon.AutoRip {
		logger.Info("disc detected; automatic ripping disabled",
			logging.String(logging.FieldEventType, "disc_detected"),
		)
		return false
	}
	if !d.ripping.CompareAndSwap(false, true) {
		logger.Debug("rip already in progress, ignoring disc event")
		return false
	}

	d.rips.Add(1)
	go func() {
		defer d.rips.Done()
		defer d.ripping.Store(false)
		summary, err := d.ripper.RipDisc(services.WithStage(ctx, "auto_rip"), ripping.Plan{})
		if err != nil {
			logging.ErrorWithContext(logger, "automatic rip failed", "auto_rip_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run cdrip protocol list to inspect the session"),
			)
			return
		}
		logger.Info("automatic rip completed",
			logging.String(logging.FieldEventType, "auto_rip_completed"),
			logging.String(logging.FieldSessionID, summary.SessionID),
			logging.Int("tracks", len(summary.Results)),
		)
	}()
	return true
}
