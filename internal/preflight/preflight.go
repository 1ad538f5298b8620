package preflight

import (
	"context"
	"strings"

	"cdrip/internal/cdrom"
	"cdrip/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed lists the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes the checks applicable to cfg. status queries the drive;
// cdrom.CheckDriveStatus is the production value.
func RunAll(ctx context.Context, cfg *config.Config, status cdrom.StatusFunc) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDevice(cfg.Drive.Device),
		CheckDisc(cfg.Drive.Device, status),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckBinary(Requirement{
		Name:        "eject",
		Command:     "eject",
		Description: "Opens the tray after a rip",
		Optional:    !cfg.Drive.EjectAfterRip,
	}))
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}
