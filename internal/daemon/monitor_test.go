package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestNewDiscMonitorWithoutDevice(t *testing.T) {
	if m := newDiscMonitor("  ", nil, nil, nil); m != nil {
		t.Fatal("expected nil monitor without a device")
	}

	var m *discMonitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("nil Start: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor reports running")
	}
}

func TestDiscMonitorStopWithoutStart(t *testing.T) {
	m := newDiscMonitor("/dev/sr0", nil, nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("unstarted monitor reports running")
	}
}

func TestMediaMatcher(t *testing.T) {
	media := map[string]string{"SUBSYSTEM": "block", "ID_CDROM": "1", "ID_CDROM_MEDIA": "1"}
	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{"change with media", netlink.UEvent{Action: netlink.CHANGE, Env: media}, true},
		{"add with media", netlink.UEvent{Action: netlink.ADD, Env: media}, true},
		{"remove", netlink.UEvent{Action: netlink.REMOVE, Env: media}, false},
		{"empty tray", netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "block", "ID_CDROM": "1"}}, false},
	}
	matcher := mediaMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Evaluate(tt.event); got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventDevice(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"devname", map[string]string{"DEVNAME": "/dev/sr0"}, "/dev/sr0"},
		{"relative devname", map[string]string{"DEVNAME": "sr1"}, "/dev/sr1"},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/pci0000:00/ata2/host1/block/sr0"}, "/dev/sr0"},
		{"nothing", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventDevice(netlink.UEvent{Env: tt.env}); got != tt.want {
				t.Fatalf("eventDevice = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscMonitorHandleEvent(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		busy bool
		want bool
	}{
		{"configured drive", map[string]string{"DEVNAME": "/dev/sr0", "ID_CDROM_MEDIA_TRACK_COUNT_AUDIO": "12"}, false, true},
		{"other drive", map[string]string{"DEVNAME": "/dev/sr1"}, false, false},
		{"no device", map[string]string{}, false, false},
		{"data disc", map[string]string{"DEVNAME": "/dev/sr0", "ID_CDROM_MEDIA_TRACK_COUNT_AUDIO": "0"}, false, false},
		{"rip in progress", map[string]string{"DEVNAME": "/dev/sr0"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called []string
			handler := func(_ context.Context, device string) bool {
				called = append(called, device)
				return true
			}
			m := newDiscMonitor("/dev/sr0", nil, handler, func() bool { return tt.busy })
			m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.CHANGE, Env: tt.env})
			if got := len(called) == 1; got != tt.want {
				t.Fatalf("handler called = %v, want %v", called, tt.want)
			}
			if tt.want && called[0] != "/dev/sr0" {
				t.Fatalf("handler device = %q", called[0])
			}
		})
	}
}
