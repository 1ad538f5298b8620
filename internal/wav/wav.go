// Package wav writes CD audio as RIFF WAVE files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"cdrip/internal/cdda"
)

const (
	headerSize    = 44
	channels      = 2
	bitsPerSample = 16
	blockAlign    = channels * bitsPerSample / 8
	byteRate      = cdda.SampleRate * blockAlign
)

// Writer streams 44.1 kHz 16-bit stereo PCM and fixes the chunk sizes on
// Close.
type Writer struct {
	w       io.WriteSeeker
	closer  io.Closer
	written int64
	closed  bool
}

// NewWriter writes a provisional header to w.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	if _, err := w.Write(header(0)); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &Writer{w: w}, nil
}

// Create creates path and returns a Writer that closes the file on Close.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	wr, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	wr.closer = f
	return wr, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("wav: write after close")
	}
	n, err := w.w.Write(p)
	w.written += int64(n)
	return n, err
}

// DataSize is the number of PCM bytes written so far.
func (w *Writer) DataSize() int64 {
	return w.written
}

// Close patches the RIFF and data chunk sizes.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.patch()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) patch() error {
	if w.written > 0xFFFFFFFF-headerSize+8 {
		return fmt.Errorf("wav: %d bytes exceed the RIFF size limit", w.written)
	}
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wav header: %w", err)
	}
	if _, err := w.w.Write(header(uint32(w.written))); err != nil {
		return fmt.Errorf("rewrite wav header: %w", err)
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}

func header(dataSize uint32) []byte {
	b := make([]byte, headerSize)
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], dataSize+headerSize-8)
	copy(b[8:], "WAVE")
	copy(b[12:], "fmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	binary.LittleEndian.PutUint16(b[20:], 1)
	binary.LittleEndian.PutUint16(b[22:], channels)
	binary.LittleEndian.PutUint32(b[24:], cdda.SampleRate)
	binary.LittleEndian.PutUint32(b[28:], byteRate)
	binary.LittleEndian.PutUint16(b[32:], blockAlign)
	binary.LittleEndian.PutUint16(b[34:], bitsPerSample)
	copy(b[36:], "data")
	binary.LittleEndian.PutUint32(b[40:], dataSize)
	return b
}
