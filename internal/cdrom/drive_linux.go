//go:build linux

package cdrom

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"cdrip/internal/cdda"
	"cdrip/internal/services"
)

// Linux CD-ROM ioctl requests from <linux/cdrom.h>.
const (
	ioctlReadTOCHeader  = 0x5305
	ioctlReadTOCEntry   = 0x5306
	ioctlReadAudio      = 0x530e
	ioctlDriveStatus    = 0x5326
	addrFormatLBA       = 0x01
	ctrlDataTrack       = 0x04
	maxFramesPerRequest = 26
)

type tocHeader struct {
	FirstTrack uint8
	LastTrack  uint8
}

type tocEntry struct {
	Track    uint8
	AdrCtrl  uint8
	Format   uint8
	_        uint8
	Addr     int32
	Datamode uint8
	_        [3]uint8
}

type readAudio struct {
	Addr    int32
	Format  uint8
	Nframes int32
	Buf     *byte
}

// Drive is an open CD-ROM block device.
type Drive struct {
	path string

	mu sync.Mutex
	fd int
}

// OpenDrive opens the device read-only without waiting for media.
func OpenDrive(path string) (*Drive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cdrom", "open", "Empty device path", nil)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, services.Wrap(services.ErrDevice, "cdrom", "open", fmt.Sprintf("Failed to open %s", path), err)
	}
	return &Drive{path: path, fd: fd}, nil
}

// Path returns the device path.
func (d *Drive) Path() string {
	return d.path
}

// Close releases the device.
func (d *Drive) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Drive) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ReadTOC reads the table of contents in LBA addressing.
func (d *Drive) ReadTOC() (TOC, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var hdr tocHeader
	if err := d.ioctl(ioctlReadTOCHeader, unsafe.Pointer(&hdr)); err != nil {
		return TOC{}, services.Wrap(services.ErrDevice, "cdrom", "read toc header", "Failed to read the disc table of contents", err)
	}
	toc := TOC{FirstTrack: int(hdr.FirstTrack), LastTrack: int(hdr.LastTrack)}
	for n := toc.FirstTrack; n <= toc.LastTrack; n++ {
		entry := tocEntry{Track: uint8(n), Format: addrFormatLBA}
		if err := d.ioctl(ioctlReadTOCEntry, unsafe.Pointer(&entry)); err != nil {
			return TOC{}, services.Wrap(services.ErrDevice, "cdrom", "read toc entry", fmt.Sprintf("Failed to read TOC entry for track %d", n), err)
		}
		toc.Tracks = append(toc.Tracks, TrackEntry{
			Number:   n,
			StartLBA: int64(entry.Addr),
			Data:     (entry.AdrCtrl>>4)&ctrlDataTrack != 0,
		})
	}
	lead := tocEntry{Track: LeadOutTrack, Format: addrFormatLBA}
	if err := d.ioctl(ioctlReadTOCEntry, unsafe.Pointer(&lead)); err != nil {
		return TOC{}, services.Wrap(services.ErrDevice, "cdrom", "read toc leadout", "Failed to read the lead-out position", err)
	}
	toc.LeadOut = int64(lead.Addr)
	return toc, nil
}

// ReadFrames reads n raw audio frames starting at lba into buf.
func (d *Drive) ReadFrames(lba int64, n int, buf []byte) error {
	if len(buf) < n*cdda.FrameSizeRaw {
		return fmt.Errorf("buffer of %d bytes too small for %d frames", len(buf), n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for n > 0 {
		chunk := min(n, maxFramesPerRequest)
		req := readAudio{
			Addr:    int32(lba),
			Format:  addrFormatLBA,
			Nframes: int32(chunk),
			Buf:     &buf[0],
		}
		if err := d.ioctl(ioctlReadAudio, unsafe.Pointer(&req)); err != nil {
			return fmt.Errorf("read audio at lba %d: %w", lba, err)
		}
		lba += int64(chunk)
		n -= chunk
		buf = buf[chunk*cdda.FrameSizeRaw:]
	}
	return nil
}

// Status queries the drive state.
func (d *Drive) Status() (DriveStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := unix.IoctlRetInt(d.fd, ioctlDriveStatus)
	if err != nil {
		return DriveStatusNoInfo, fmt.Errorf("ioctl CDROM_DRIVE_STATUS on %s: %w", d.path, err)
	}
	return DriveStatus(r), nil
}

// CheckDriveStatus opens the device, queries its state and closes it again.
func CheckDriveStatus(device string) (DriveStatus, error) {
	drive, err := OpenDrive(device)
	if err != nil {
		return DriveStatusNoInfo, err
	}
	defer drive.Close() //nolint:errcheck
	return drive.Status()
}
