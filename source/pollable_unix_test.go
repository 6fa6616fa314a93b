//go:build unix

package source

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"golang.org/x/sys/unix"
)

// blockingPipe returns a pipe whose read end is a plain blocking descriptor,
// the way a shell hands stdin to the process
func blockingPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	r := os.NewFile(uintptr(fds[0]), "/dev/stdin")
	w := os.NewFile(uintptr(fds[1]), "pipe-writer")
	t.Cleanup(func() { w.Close() })
	return r, w
}

func TestFileSourceCloseUnblocksBlockingDescriptor(t *testing.T) {
	is := is.New(t)

	r, w := blockingPipe(t)
	src := NewReaderSource(r)

	_, err := io.WriteString(w, "first\n")
	is.NoErr(err)
	line, err := src.ReadLine()
	is.NoErr(err)
	is.Equal(line, "first")

	errc := make(chan error, 1)
	go func() {
		_, err := src.ReadLine()
		errc <- err
	}()

	time.Sleep(100 * time.Millisecond)
	is.NoErr(src.Close())

	select {
	case err := <-errc:
		is.True(errors.Is(err, ErrClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine still blocked after Close")
	}
}

func TestFileSourceReadsToEOF(t *testing.T) {
	is := is.New(t)

	r, w := blockingPipe(t)
	src := NewReaderSource(r)
	defer src.Close()

	_, err := io.WriteString(w, "a\nb")
	is.NoErr(err)
	is.NoErr(w.Close())

	for _, want := range []string{"a", "b"} {
		line, err := src.ReadLine()
		is.NoErr(err)
		is.Equal(line, want)
	}
	_, err = src.ReadLine()
	is.True(errors.Is(err, io.EOF))
}
