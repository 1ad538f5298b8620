package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

const (
	maxLineSize  = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// Options selects the window Tail reads.
type Options struct {
	// Offset is the byte position to continue from. Negative returns the last
	// Limit lines.
	Offset int64
	Limit  int
	// Wait bounds how long Tail polls when no new lines are available.
	Wait time.Duration
}

// Chunk is one read from the log file.
type Chunk struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Tail reads lines from path. A missing file reads as empty at offset zero. An offset past the end of the file, as after rotation, restarts at
// the beginning.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if opts.Wait > 0 {
			return waitForLines(ctx, path, 0, opts.Limit, opts.Wait)
		}
		return Chunk{Lines: []string{}}, nil
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = lastLines(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = 0
		}
		chunk, err = readFrom(path, offset, opts.Limit)
	}
	if err != nil || len(chunk.Lines) > 0 || opts.Wait <= 0 {
		return chunk, err
	}
	return waitForLines(ctx, path, chunk.Offset, opts.Limit, opts.Wait)
}

// Follow emits the last limit lines of path and then every appended line
// until ctx ends.
func Follow(ctx context.Context, path string, limit int, emit func(string)) error {
	chunk, err := Tail(ctx, path, Options{Offset: -1, Limit: limit})
	if err != nil {
		return err
	}
	for {
		for _, line := range chunk.Lines {
			emit(line)
		}
		chunk, err = Tail(ctx, path, Options{Offset: chunk.Offset, Wait: time.Hour})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func lastLines(path string, limit int) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Lines: []string{}, Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	next := 0
	var offset int64
	scanner := newScanner(file, &offset)
	for scanner.Scan() {
		if len(ring) < limit {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("read log file: %w", err)
	}
	lines := append(ring[next:len(ring):len(ring)], ring[:next]...)
	return Chunk{Lines: lines, Offset: offset}, nil
}

func readFrom(path string, offset int64, limit int) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}

	lines := []string{}
	scanner := newScanner(file, &offset)
	for (limit <= 0 || len(lines) < limit) && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("read log file: %w", err)
	}
	return Chunk{Lines: lines, Offset: offset}, nil
}

// newScanner yields complete lines only and advances *offset past each one,
// so a partially written last line is picked up by the next read.
func newScanner(r io.Reader, offset *int64) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, false)
		if advance > 0 {
			*offset += int64(advance)
		}
		return advance, token, err
	})
	return scanner
}

func waitForLines(ctx context.Context, path string, offset int64, limit int, wait time.Duration) (Chunk, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Chunk{Lines: []string{}, Offset: offset}, ctx.Err()
		case <-timer.C:
			return Chunk{Lines: []string{}, Offset: offset}, nil
		case <-ticker.C:
		}
		chunk, err := readFrom(path, offset, limit)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return chunk, err
		}
		if len(chunk.Lines) > 0 {
			return chunk, nil
		}
	}
}
