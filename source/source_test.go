package source

import (
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestReaderSourceLines(t *testing.T) {
	is := is.New(t)

	src := NewReaderSource(strings.NewReader("first\r\nsecond\n\nlast"))

	for _, want := range []string{"first", "second", "", "last"} {
		line, err := src.ReadLine()
		is.NoErr(err)
		is.Equal(line, want)
	}

	_, err := src.ReadLine()
	is.True(errors.Is(err, io.EOF))
}

func TestReaderSourceClose(t *testing.T) {
	is := is.New(t)

	pr, pw := io.Pipe()
	src := NewReaderSource(pr)

	errc := make(chan error, 1)
	go func() {
		_, err := src.ReadLine()
		errc <- err
	}()

	is.NoErr(src.Close())
	pw.Close()

	select {
	case err := <-errc:
		is.True(errors.Is(err, ErrClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not unblock after Close")
	}

	is.NoErr(src.Close())
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessSourceMergesStderr(t *testing.T) {
	requireShell(t)
	is := is.New(t)

	src, err := StartProcess("sh", "-c", `echo '{"model":"X"}'; echo 'tuner error' 1>&2`)
	is.NoErr(err)
	defer src.Close()

	var lines []string
	for {
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		is.NoErr(err)
		lines = append(lines, line)
	}

	is.Equal(len(lines), 2)
	is.True(strings.Contains(strings.Join(lines, "\n"), "tuner error"))

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}
	is.NoErr(src.ExitErr())
}

func TestProcessSourceCloseStopsDecoder(t *testing.T) {
	requireShell(t)
	is := is.New(t)

	src, err := StartProcess("sleep", "30")
	is.NoErr(err)
	src.SetGracePeriod(200 * time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		_, err := src.ReadLine()
		errc <- err
	}()

	is.NoErr(src.Close())

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("decoder still running after Close")
	}

	select {
	case err := <-errc:
		is.True(err != nil)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadLine did not unblock after Close")
	}

	is.NoErr(src.Close())
}

func TestStartProcessMissingBinary(t *testing.T) {
	is := is.New(t)

	_, err := StartProcess("definitely-not-rtl_433-binary")
	is.True(err != nil)
}
