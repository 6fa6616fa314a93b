//go:build unix

package source

import (
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/eddielth/sdr-weather/logger"
)

// newFileSource reads f through a non-blocking duplicate of its descriptor.
// Close releases the duplicate, puts f back into blocking mode and closes f.
func newFileSource(f *os.File) *ReaderSource {
	fd := int(f.Fd())

	dup, err := unix.Dup(fd)
	if err != nil {
		logger.Debug("dup %s failed, reads will not be interruptible: %v", f.Name(), err)
		return newReaderSource(f, f)
	}
	if err := unix.SetNonblock(dup, true); err != nil {
		logger.Debug("set %s non-blocking failed, reads will not be interruptible: %v", f.Name(), err)
		_ = unix.Close(dup)
		return newReaderSource(f, f)
	}

	polled := os.NewFile(uintptr(dup), f.Name())
	return newReaderSource(polled, closerFunc(func() error {
		err := polled.Close()
		// O_NONBLOCK is shared with f and whoever handed it to us
		if serr := unix.SetNonblock(fd, false); serr != nil {
			logger.Debug("restore blocking mode of %s: %v", f.Name(), serr)
		}
		return multierr.Append(err, f.Close())
	}))
}
