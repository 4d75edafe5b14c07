package tui

import (
	"strings"
	"sync"
)

// LineSink is an io.Writer that forwards complete lines to a channel. Lines
// are dropped when the reader falls behind.
type LineSink struct {
	mu  sync.Mutex
	buf strings.Builder
	ch  chan string
}

func NewLineSink(buffer int) *LineSink {
	return &LineSink{ch: make(chan string, max(1, buffer))}
}

func (s *LineSink) C() <-chan string { return s.ch }

func (s *LineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	rest := s.buf.String()
	for {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		select {
		case s.ch <- rest[:i]:
		default:
		}
		rest = rest[i+1:]
	}
	s.buf.Reset()
	s.buf.WriteString(rest)
	return len(p), nil
}
