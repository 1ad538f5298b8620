package cdrom

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"cdrip/internal/cdda"
	"cdrip/internal/services"
)

// FrameSource reads raw audio frames. *Drive is the production source.
type FrameSource interface {
	ReadFrames(lba int64, n int, buf []byte) error
}

// Reader serves verified audio sectors from a FrameSource and reports read
// corrections through the callback contract the extraction worker consumes.
type Reader struct {
	src FrameSource
	toc TOC

	mu         sync.Mutex
	pos        int64
	shiftBytes int64
	mode       int
	maxRetries int
	neverSkip  bool
}

var _ cdda.Transport = (*Reader)(nil)

// NewReader binds a reader to a source and the TOC of the loaded disc.
func NewReader(src FrameSource, toc TOC) *Reader {
	return &Reader{
		src:        src,
		toc:        toc,
		pos:        toc.DiscSpan().First,
		mode:       3,
		maxRetries: 20,
		neverSkip:  true,
	}
}

// TOC returns the table of contents the reader was built with.
func (r *Reader) TOC() TOC {
	return r.toc
}

func (r *Reader) FirstSectorOfDisc() int64 { return r.toc.DiscSpan().First }

func (r *Reader) LastSectorOfDisc() int64 { return r.toc.DiscSpan().Last }

func (r *Reader) FirstSectorOfTrack(track int) int64 { return r.toc.Span(track).First }

func (r *Reader) LastSectorOfTrack(track int) int64 { return r.toc.Span(track).Last }

func (r *Reader) NumOfFramesOfTrack(track int) int64 { return r.toc.Frames(track) }

// Seek positions the next read. The position may point one sector past the
// end of the disc, like a file offset at EOF.
func (r *Reader) Seek(sector int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	disc := r.toc.DiscSpan()
	var target int64
	switch whence {
	case cdda.SeekSet:
		target = sector
	case cdda.SeekCur:
		target = r.pos + sector
	case cdda.SeekEnd:
		target = disc.Last + 1 + sector
	default:
		return -1, services.Wrap(services.ErrValidation, "cdrom", "seek", fmt.Sprintf("Invalid whence %d", whence), nil)
	}
	if disc.Empty() || target < disc.First || target > disc.Last+1 {
		return -1, services.Wrap(services.ErrValidation, "cdrom", "seek", fmt.Sprintf("Sector %d outside the audio area", target), nil)
	}
	r.pos = target
	return target, nil
}

// SampleOffset shifts every subsequent read by offset stereo samples. A
// positive offset reads later data.
func (r *Reader) SampleOffset(offset int) {
	r.mu.Lock()
	r.shiftBytes = int64(offset) * 4
	r.mu.Unlock()
}

func (r *Reader) SetParanoiaMode(mode int) {
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
}

func (r *Reader) SetMaxRetries(retries int) {
	r.mu.Lock()
	r.maxRetries = max(retries, 0)
	r.mu.Unlock()
}

func (r *Reader) SetNeverSkip(neverSkip bool) {
	r.mu.Lock()
	r.neverSkip = neverSkip
	r.mu.Unlock()
}

// ReadSector returns the sector at the current position and advances it.
func (r *Reader) ReadSector(cb cdda.Callback) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb == nil {
		cb = func(int64, cdda.Status) {}
	}

	sector := r.pos
	start := sector*cdda.FrameSizeRaw + r.shiftBytes
	firstLBA := floorDiv(start, cdda.FrameSizeRaw)
	within := start - firstLBA*cdda.FrameSizeRaw
	frames := 1
	if within != 0 {
		frames = 2
	}

	raw := make([]byte, 0, frames*cdda.FrameSizeRaw)
	for i := 0; i < frames; i++ {
		data, err := r.readVerified(firstLBA+int64(i), cb)
		if data == nil {
			return nil, err
		}
		raw = append(raw, data...)
	}

	r.pos++
	cb(sector*cdda.WordsPerFrame, cdda.StatusRead)
	return raw[within : within+cdda.FrameSizeRaw], nil
}

// readVerified reads one frame, retrying on errors and, in verifying modes,
// until two consecutive reads agree. It returns nil when the frame is lost
// and skipping is disabled.
func (r *Reader) readVerified(lba int64, cb cdda.Callback) ([]byte, error) {
	if lba < 0 || lba >= r.toc.LeadOut {
		return make([]byte, cdda.FrameSizeRaw), nil
	}
	words := lba * cdda.WordsPerFrame

	var (
		best    []byte
		lastErr error
		trouble bool
	)
	attempts := r.maxRetries + 1
	if r.mode > 0 {
		attempts++
	}
	for range attempts {
		data, err := r.readFrame(lba)
		if err != nil {
			lastErr = err
			trouble = true
			cb(words, cdda.StatusReadErr)
			continue
		}
		if r.mode <= 0 {
			if trouble {
				cb(words, cdda.StatusRepair)
			}
			return data, nil
		}
		if best != nil && bytes.Equal(best, data) {
			if trouble {
				cb(words, cdda.StatusRepair)
			}
			return data, nil
		}
		if best != nil {
			// Two reads disagreed.
			trouble = true
			cb(words, cdda.StatusVerify)
		}
		best = data
	}

	if r.neverSkip {
		if lastErr == nil {
			lastErr = errors.New("reads never agreed")
		}
		return nil, services.Wrap(services.ErrDevice, "cdrom", "read", fmt.Sprintf("Sector %d unrecoverable after %d attempts", lba, attempts), lastErr)
	}
	cb(words, cdda.StatusSkip)
	if best == nil {
		best = make([]byte, cdda.FrameSizeRaw)
	}
	return best, nil
}

func (r *Reader) readFrame(lba int64) ([]byte, error) {
	buf := make([]byte, cdda.FrameSizeRaw)
	if err := r.src.ReadFrames(lba, 1, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
