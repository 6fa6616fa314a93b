// Package publish delivers accepted readings to notification collaborators.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/units"
)

// Reading is what a dispatcher receives for an accepted event that carries a
// temperature or humidity.
type Reading struct {
	Time      int64
	SensorKey string
	Fields    event.Fields
	// Temperature in the configured display unit
	Temperature units.Temperature
	// Humidity as decoded, empty when the event has none
	Humidity string
}

// NewReading builds the reading for ev with an already normalized temperature
func NewReading(ev *event.Event, temp units.Temperature) Reading {
	r := Reading{
		Time:        ev.Time,
		SensorKey:   ev.Key,
		Fields:      ev.Fields,
		Temperature: temp,
	}
	if f, ok := ev.Fields.Get(event.KeyHumidity); ok {
		r.Humidity = f.String()
	}
	return r
}

type readingJSON struct {
	Time        int64        `json:"time"`
	Sensor      string       `json:"sensor"`
	Temperature *float64     `json:"temperature,omitempty"`
	Unit        string       `json:"unit,omitempty"`
	Humidity    string       `json:"humidity,omitempty"`
	Fields      event.Fields `json:"fields"`
}

// MarshalJSON is the wire form used by the MQTT publisher
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{
		Time:     r.Time,
		Sensor:   r.SensorKey,
		Humidity: r.Humidity,
		Fields:   r.Fields,
	}
	if r.Temperature.Numeric {
		v := r.Temperature.Value
		out.Temperature = &v
		out.Unit = string(r.Temperature.Unit)
	}
	if out.Fields == nil {
		out.Fields = event.Fields{}
	}
	return json.Marshal(out)
}

// Dispatcher receives accepted readings. Failures are reported, never fatal.
type Dispatcher interface {
	Dispatch(ctx context.Context, r Reading) error
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, r Reading) error

// Dispatch implements Dispatcher
func (f DispatcherFunc) Dispatch(ctx context.Context, r Reading) error {
	return f(ctx, r)
}

// Multi hands every reading to all dispatchers in order
type Multi []Dispatcher

// Dispatch calls each dispatcher and combines their failures
func (m Multi) Dispatch(ctx context.Context, r Reading) error {
	var errs error
	for i, d := range m {
		if err := d.Dispatch(ctx, r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispatcher %d: %w", i, err))
		}
	}
	return errs
}
