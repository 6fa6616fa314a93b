// Package display prints one human readable line per decoded event.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/units"
)

// Mode selects where event summaries go
type Mode string

const (
	Terminal Mode = "terminal"
	Silent   Mode = "silent"
)

// ParseMode accepts terminal or silent
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Terminal:
		return Terminal, nil
	case Silent:
		return Silent, nil
	default:
		return Terminal, fmt.Errorf("unknown display mode: %q", s)
	}
}

// Format builds the summary line for an event
func Format(ev *event.Event, temp units.Temperature) string {
	var b strings.Builder

	if ev.TimeText != "" {
		b.WriteString(ev.TimeText)
		b.WriteByte(' ')
	}
	b.WriteString(ev.Key)

	if ev.LowBattery() {
		b.WriteString(" Low Battery!")
	}

	if temp.Present {
		fmt.Fprintf(&b, " Temperature %s%s", temp.String(), temp.Unit)
	}

	if f, ok := ev.Fields.Get(event.KeyHumidity); ok {
		fmt.Fprintf(&b, " Humidity %s", f.String())
	}

	return b.String()
}

// Printer writes summaries in terminal mode and nothing in silent mode
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Event prints the summary of a decoded event
func (p *Printer) Event(mode Mode, ev *event.Event, temp units.Temperature) {
	p.println(mode, Format(ev, temp))
}

// Raw prints an undecodable line as received
func (p *Printer) Raw(mode Mode, line string) {
	p.println(mode, line)
}

func (p *Printer) println(mode Mode, s string) {
	if p == nil || mode != Terminal {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}
