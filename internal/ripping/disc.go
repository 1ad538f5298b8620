package ripping

import (
	"context"
	"time"

	"cdrip/internal/cdda"
	"cdrip/internal/cdrom"
	"cdrip/internal/services"
)

// Disc is an opened medium ready for extraction.
type Disc struct {
	TOC       cdrom.TOC
	Transport cdda.Transport
	close     func() error
}

// NewDisc wraps a transport and its TOC. closeFn may be nil.
func NewDisc(toc cdrom.TOC, transport cdda.Transport, closeFn func() error) *Disc {
	return &Disc{TOC: toc, Transport: transport, close: closeFn}
}

// Close releases the underlying device.
func (d *Disc) Close() error {
	if d == nil || d.close == nil {
		return nil
	}
	return d.close()
}

// Opener opens the disc in a device.
type Opener func(ctx context.Context, device string) (*Disc, error)

// DriveOpener waits for the drive to report a disc, reads its TOC, and
// returns a verifying reader over the raw device.
func DriveOpener(readyTimeout time.Duration) Opener {
	return func(ctx context.Context, device string) (*Disc, error) {
		if _, err := cdrom.WaitForReady(ctx, device, readyTimeout, time.Second, cdrom.CheckDriveStatus); err != nil {
			return nil, services.Wrap(services.ErrDevice, "ripping", "wait for drive", "Drive has no readable disc; insert an audio CD and close the tray", err)
		}
		drive, err := cdrom.OpenDrive(device)
		if err != nil {
			return nil, err
		}
		toc, err := drive.ReadTOC()
		if err != nil {
			_ = drive.Close()
			return nil, err
		}
		if len(toc.AudioTracks()) == 0 {
			_ = drive.Close()
			return nil, services.Wrap(services.ErrValidation, "ripping", "read toc", "Disc has no audio tracks", nil)
		}
		return NewDisc(toc, cdrom.NewReader(drive, toc), drive.Close), nil
	}
}
