package source

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/eddielth/sdr-weather/logger"
)

// DefaultGracePeriod is how long Close waits after an interrupt before killing
const DefaultGracePeriod = 2 * time.Second

// ProcessSource runs the radio decoder and reads its combined stdout/stderr
type ProcessSource struct {
	*ReaderSource

	cmd   *exec.Cmd
	grace time.Duration

	done    chan struct{}
	waitErr error

	once     sync.Once
	closeErr error
}

// StartProcess launches name with args, e.g. "rtl_433", "-F", "json"
func StartProcess(name string, args ...string) (*ProcessSource, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pipe failed: %w", err)
	}

	cmd := exec.Command(name, args...)
	// diagnostics on stderr are part of the stream, like "2>&1"
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s failed: %w", name, err)
	}
	// the child holds its own copy, close ours so EOF arrives when it exits
	pw.Close()

	p := &ProcessSource{
		ReaderSource: newReaderSource(pr, pr),
		cmd:          cmd,
		grace:        DefaultGracePeriod,
		done:         make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	logger.Info("started decoder: %s %s (pid %d)", name, strings.Join(args, " "), cmd.Process.Pid)
	return p, nil
}

// SetGracePeriod changes how long Close waits for a clean exit
func (p *ProcessSource) SetGracePeriod(d time.Duration) {
	p.grace = d
}

// Done is closed when the decoder process has exited
func (p *ProcessSource) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the result of waiting on the process, valid after Done
func (p *ProcessSource) ExitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Close interrupts the decoder, kills it after the grace period and
// releases the pipe. Safe to call more than once.
func (p *ProcessSource) Close() error {
	p.once.Do(func() {
		p.closeErr = p.stop()
		if err := p.ReaderSource.Close(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}

func (p *ProcessSource) stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	logger.Info("stopping decoder (pid %d)", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		logger.Debug("interrupt decoder failed: %v", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.grace):
	}

	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.done:
			return nil
		default:
			return fmt.Errorf("kill decoder failed: %w", err)
		}
	}
	<-p.done
	return nil
}
