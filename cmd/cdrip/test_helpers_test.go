package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdrip/internal/cdda"
	"cdrip/internal/cdrom"
	"cdrip/internal/config"
	"cdrip/internal/notifications"
	"cdrip/internal/ripping"
	"cdrip/internal/testsupport"
)

type patternSource struct{}

func (patternSource) ReadFrames(lba int64, n int, buf []byte) error {
	for k := 0; k < n; k++ {
		frame := buf[k*cdda.FrameSizeRaw : (k+1)*cdda.FrameSizeRaw]
		for i := range frame {
			frame[i] = byte(lba + int64(k))
		}
	}
	return nil
}

// cliTOC has two audio tracks of 12 and 18 sectors.
func cliTOC() cdrom.TOC {
	return cdrom.TOC{
		FirstTrack: 1,
		LastTrack:  2,
		Tracks:     []cdrom.TrackEntry{{Number: 1, StartLBA: 0}, {Number: 2, StartLBA: 12}},
		LeadOut:    30,
	}
}

type nopEjector struct{}

func (nopEjector) Eject(context.Context, string) error { return nil }

type cliEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliEnv {
	t.Helper()
	device := filepath.Join(t.TempDir(), "sr0")
	if err := os.WriteFile(device, nil, 0o644); err != nil {
		t.Fatalf("create fake device: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithDevice(device))
	cfg.Extraction.MaxRetries = 1
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)
	return &cliEnv{cfg: cfg, configPath: path}
}

func (e *cliEnv) commandContext() *commandContext {
	ctx := newCommandContext()
	ctx.opener = func(*config.Config) ripping.Opener {
		return func(context.Context, string) (*ripping.Disc, error) {
			toc := cliTOC()
			return ripping.NewDisc(toc, cdrom.NewReader(patternSource{}, toc), nil), nil
		}
	}
	ctx.ejector = nopEjector{}
	ctx.driveStatus = func(string) (cdrom.DriveStatus, error) { return cdrom.DriveStatusDiscOK, nil }
	ctx.notifier = notifications.NewService
	return ctx
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithContext(env.commandContext())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
log_dir = %q
state_dir = %q

[drive]
device = %q
ready_timeout = %d

[extraction]
paranoia_mode = %d
max_retries = %d

[logging]
format = "json"
level = "error"

[daemon]
api_bind = %q
`,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Drive.Device,
		cfg.Drive.ReadyTimeout,
		cfg.Extraction.ParanoiaMode,
		cfg.Extraction.MaxRetries,
		cfg.Daemon.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
