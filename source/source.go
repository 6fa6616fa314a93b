// Package source provides the text line streams the pipeline reads from.
package source

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrClosed is returned by ReadLine after Close
var ErrClosed = errors.New("source closed")

// LineSource yields decoder output one line at a time
type LineSource interface {
	// ReadLine blocks until a line is available. It returns io.EOF when the
	// stream has ended.
	ReadLine() (string, error)
	// Close terminates the source and unblocks a pending ReadLine
	Close() error
}

// ReaderSource reads lines from any reader, e.g. stdin fed by a shell pipe
type ReaderSource struct {
	r      *bufio.Reader
	closer io.Closer

	mu     sync.Mutex
	closed bool
}

// NewReaderSource wraps r. If r is an io.Closer, Close closes it.
// An *os.File such as os.Stdin is read through the runtime poller so Close
// interrupts a pending read even when the descriptor is blocking.
func NewReaderSource(r io.Reader) *ReaderSource {
	if f, ok := r.(*os.File); ok {
		return newFileSource(f)
	}
	var c io.Closer
	if rc, ok := r.(io.Closer); ok {
		c = rc
	}
	return newReaderSource(r, c)
}

func newReaderSource(r io.Reader, c io.Closer) *ReaderSource {
	return &ReaderSource{r: bufio.NewReaderSize(r, 64*1024), closer: c}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ReadLine returns the next line without its line terminator
func (s *ReaderSource) ReadLine() (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}

	line, err := s.r.ReadString('\n')
	if err != nil {
		if s.isClosed() {
			return "", ErrClosed
		}
		if errors.Is(err, io.EOF) && line != "" {
			// deliver the unterminated last line, EOF comes on the next call
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close implements LineSource
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *ReaderSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
