package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"cdrip/internal/cdda"
	"cdrip/internal/cdrom"
	"cdrip/internal/config"
	"cdrip/internal/notifications"
	"cdrip/internal/ripping"
	"cdrip/internal/services"
	"cdrip/internal/store"
	"cdrip/internal/testsupport"
)

type silentSource struct{}

func (silentSource) ReadFrames(_ int64, n int, buf []byte) error {
	clear(buf[:n*cdda.FrameSizeRaw])
	return nil
}

func fakeOpener() ripping.Opener {
	return func(context.Context, string) (*ripping.Disc, error) {
		toc := cdrom.TOC{
			FirstTrack: 1,
			LastTrack:  2,
			Tracks:     []cdrom.TrackEntry{{Number: 1, StartLBA: 0}, {Number: 2, StartLBA: 8}},
			LeadOut:    16,
		}
		return ripping.NewDisc(toc, cdrom.NewReader(silentSource{}, toc), nil), nil
	}
}

type detectNotifier struct {
	notifications.Service
	mu       sync.Mutex
	detected []string
}

func (n *detectNotifier) NotifyDiscDetected(_ context.Context, device, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detected = append(n.detected, device)
	return nil
}

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *store.Store, *detectNotifier) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &detectNotifier{Service: notifications.NewService(cfg)}
	r := ripping.New(cfg, st, nil, ripping.WithOpener(fakeOpener()), ripping.WithNotifier(notifier))
	d, err := New(cfg, st, nil, WithRipper(r), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, st, notifier
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(testsupport.NewConfig(t), nil, nil); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, st, _ := newTestDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := New(cfg, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("second Start = %v, want configuration error", err)
	}

	status := first.Status()
	if !status.Running || status.APIAddress == "" || status.LockFilePath != cfg.DaemonLockPath() {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestDaemonStopReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon still running after Stop")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestDaemonStartMarksInterruptedSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, _ := newTestDaemon(t, cfg)
	testsupport.NewSession(t, st, "stale", time.Now().Add(-time.Hour))

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	session, err := st.GetSession(context.Background(), "stale")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Status != store.SessionFailed {
		t.Fatalf("status = %q, want failed", session.Status)
	}
}

func TestDaemonStartLeavesSessionOfLiveRip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, _ := newTestDaemon(t, cfg)
	testsupport.NewSession(t, st, "live", time.Now())

	held := flock.New(cfg.DriveLockPath())
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer held.Unlock()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	session, err := st.GetSession(context.Background(), "live")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Status != store.SessionRunning {
		t.Fatalf("status = %q, want running while the drive lock is held", session.Status)
	}
}

func TestHandleDiscWithoutAutoRip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, notifier := newTestDaemon(t, cfg)

	if d.handleDisc(context.Background(), "/dev/sr0") {
		t.Fatal("handleDisc started a rip with auto_rip disabled")
	}
	if len(notifier.detected) != 1 || notifier.detected[0] != "/dev/sr0" {
		t.Fatalf("detections = %v", notifier.detected)
	}
	sessions, err := st.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("sessions = %d, want none", len(sessions))
	}
}

func TestHandleDiscAutoRip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.AutoRip = true
	d, st, _ := newTestDaemon(t, cfg)

	if !d.handleDisc(context.Background(), "/dev/sr0") {
		t.Fatal("handleDisc did not start a rip")
	}
	d.rips.Wait()
	if d.ripping.Load() {
		t.Fatal("rip flag still set after completion")
	}

	sessions, err := st.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != store.SessionCompleted || sessions[0].TrackCount != 2 {
		t.Fatalf("unexpected sessions: %#v", sessions)
	}
	runs, err := st.RunsForSession(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("RunsForSession: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
}

func TestHandleDiscIgnoredWhileRipping(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.AutoRip = true
	d, _, _ := newTestDaemon(t, cfg)

	d.ripping.Store(true)
	if d.handleDisc(context.Background(), "/dev/sr0") {
		t.Fatal("handleDisc started a second rip")
	}
}
