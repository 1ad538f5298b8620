package cdrom

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"cdrip/internal/services"
)

// Ejector opens the tray once a rip is done.
type Ejector interface {
	Eject(ctx context.Context, device string) error
}

type commandEjector struct {
	binary string
}

// NewEjector returns an ejector backed by the eject utility.
func NewEjector() Ejector {
	return commandEjector{binary: "eject"}
}

func (e commandEjector) Eject(ctx context.Context, device string) error {
	args := []string{}
	if device != "" {
		args = append(args, device)
	}
	if out, err := exec.CommandContext(ctx, e.binary, args...).CombinedOutput(); err != nil {
		if detail := strings.TrimSpace(string(out)); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "cdrom", "eject", fmt.Sprintf("Failed to eject %s; check that the %s utility is installed", device, e.binary), err)
	}
	return nil
}
