//go:build !linux

package cdrom

import (
	"runtime"

	"cdrip/internal/services"
)

// Drive is unavailable outside Linux.
type Drive struct{}

func unsupported(op string) error {
	return services.Wrap(services.ErrDevice, "cdrom", op, "CD-ROM access is not supported on "+runtime.GOOS, nil)
}

// OpenDrive always fails outside Linux.
func OpenDrive(string) (*Drive, error) { return nil, unsupported("open") }

func (*Drive) Path() string { return "" }
func (*Drive) Close() error { return nil }
func (*Drive) ReadTOC() (TOC, error) { return TOC{}, unsupported("read toc") }
func (*Drive) ReadFrames(int64, int, []byte) error { return unsupported("read audio") }
func (*Drive) Status() (DriveStatus, error) { return DriveStatusNoInfo, unsupported("status") }

// CheckDriveStatus always fails outside Linux.
func CheckDriveStatus(string) (DriveStatus, error) { return DriveStatusNoInfo, unsupported("status") }
