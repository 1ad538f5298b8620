package extract

import "sync"

// Protocol is the append-only audit log of one worker. Lines are never
// reordered or removed.
type Protocol struct {
	mu    sync.RWMutex
	lines []string
}

// Append adds a line to the end of the protocol.
func (p *Protocol) Append(line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	p.mu.Unlock()
}

// Lines returns a snapshot of every line appended so far.
func (p *Protocol) Lines() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// Len returns the number of lines appended so far.
func (p *Protocol) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.lines)
}

// Since returns the lines appended after the first n.
func (p *Protocol) Since(n int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(p.lines) {
		return nil
	}
	out := make([]string, len(p.lines)-n)
	copy(out, p.lines[n:])
	return out
}
