package daemon

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"cdrip/internal/logging"
)

// discHandler reacts to media in device and reports whether a rip started.
type discHandler func(ctx context.Context, device string) bool

// discMonitor listens for udev netlink events announcing media in the
// configured drive.
type discMonitor struct {
	device  string
	logger  *slog.Logger
	handler discHandler
	busy    func() bool

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newDiscMonitor returns nil when no device is configured; a nil monitor is
// inert.
func newDiscMonitor(device string, logger *slog.Logger, handler discHandler, busy func() bool) *discMonitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &discMonitor{
		device:  device,
		logger:  logging.NewComponentLogger(logger, "disc-monitor"),
		handler: handler,
		busy:    busy,
	}
}

// Start connects to the udev netlink socket. A failed connection is logged
// and leaves the daemon without automatic detection.
func (m *discMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "netlink connect failed; discs must be ripped manually", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "automatic disc detection unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, m.quit)

	m.logger.Info("disc monitor started",
		logging.String(logging.FieldEventType, "disc_monitor_started"),
		logging.String(logging.FieldDevice, m.device),
	)
	return nil
}

// Stop closes the netlink connection.
func (m *discMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("disc monitor stopped", logging.String(logging.FieldEventType, "disc_monitor_stopped"))
}

// Running reports whether the monitor is connected.
func (m *discMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *discMonitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	stop := conn.Monitor(queue, errs, mediaMatcher())

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return
		case <-quit:
			close(stop)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "disc detection may miss events"),
			)
		}
	}
}

// mediaMatcher accepts block-device add/change events of CD drives holding
// media.
func mediaMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (m *discMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := eventDevice(uevent)
	if device == "" || device != m.device {
		m.logger.Debug("ignoring uevent",
			logging.String("action", string(uevent.Action)),
			logging.String(logging.FieldDevice, device),
		)
		return
	}
	// udev reports zero audio tracks for data-only discs.
	if uevent.Env["ID_CDROM_MEDIA_TRACK_COUNT_AUDIO"] == "0" {
		m.logger.Debug("ignoring disc without audio tracks", logging.String(logging.FieldDevice, device))
		return
	}
	if m.busy != nil && m.busy() {
		m.logger.Debug("rip in progress, ignoring uevent", logging.String(logging.FieldDevice, device))
		return
	}

	m.logger.Info("audio disc detected",
		logging.String(logging.FieldEventType, "disc_detected"),
		logging.String(logging.FieldDevice, device),
		logging.String("action", string(uevent.Action)),
	)
	if m.handler != nil && m.handler(ctx, device) {
		m.logger.Info("automatic rip started",
			logging.String(logging.FieldEventType, "auto_rip_started"),
			logging.String(logging.FieldDevice, device),
		)
	}
}

// eventDevice resolves the device node of a uevent, falling back to the last
// DEVPATH element.
func eventDevice(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/" + path.Base(devpath)
}
