package compiler

import "sync"

// tailBuffer is an io.Writer keeping at most limit bytes, discarding the
// oldest output first. Verbose compilers can emit megabytes of warnings;
// the tail is what diagnoses a failure. Safe for the single writer goroutine
// os/exec spawns per stream plus the post-Wait reader.
type tailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
		t.truncated = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return "[... output truncated ...]\n" + string(t.buf)
	}
	return string(t.buf)
}
