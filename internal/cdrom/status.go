package cdrom

import (
	"context"
	"fmt"
	"time"
)

// DriveStatus is the result of a CDROM_DRIVE_STATUS request.
type DriveStatus int

const (
	DriveStatusNoInfo   DriveStatus = 0
	DriveStatusNoDisc   DriveStatus = 1
	DriveStatusTrayOpen DriveStatus = 2
	DriveStatusNotReady DriveStatus = 3
	DriveStatusDiscOK   DriveStatus = 4
)

func (s DriveStatus) String() string {
	switch s {
	case DriveStatusNoInfo:
		return "no_info"
	case DriveStatusNoDisc:
		return "no_disc"
	case DriveStatusTrayOpen:
		return "tray_open"
	case DriveStatusNotReady:
		return "not_ready"
	case DriveStatusDiscOK:
		return "disc_ok"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StatusFunc queries a drive. CheckDriveStatus is the production value.
type StatusFunc func(device string) (DriveStatus, error)

// WaitForReady polls once per interval until the drive reports a disc, the
// timeout expires, or ctx is done.
func WaitForReady(ctx context.Context, device string, timeout, interval time.Duration, check StatusFunc) (DriveStatus, error) {
	if check == nil {
		check = CheckDriveStatus
	}
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(timeout)

	var last DriveStatus
	for {
		status, err := check(device)
		if err != nil {
			return status, err
		}
		last = status
		if status == DriveStatusDiscOK {
			return status, nil
		}
		if !time.Now().Before(deadline) {
			return last, fmt.Errorf("drive %s not ready after %s (last status: %s)", device, timeout, last)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
}
