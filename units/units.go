// Package units converts decoded temperatures into the configured display unit.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eddielth/sdr-weather/event"
)

// Unit is a temperature display unit
type Unit string

const (
	// Native keeps whatever unit the sensor reported
	Native     Unit = ""
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// ParseUnit accepts "", native, C, celsius, F, fahrenheit in any case
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return Native, nil
	case "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	default:
		return Native, fmt.Errorf("unknown temperature unit: %q", s)
	}
}

// CelsiusToFahrenheit converts and rounds to one decimal
func CelsiusToFahrenheit(c float64) float64 {
	return round1(c*9.0/5.0 + 32.0)
}

// FahrenheitToCelsius converts and rounds to one decimal
func FahrenheitToCelsius(f float64) float64 {
	return round1((f - 32.0) * 5.0 / 9.0)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Temperature is the display form of an event's temperature
type Temperature struct {
	// Present is false when the event has no temperature field
	Present bool
	// Numeric is false when the field is present but not a number (e.g. null)
	Numeric bool
	Value   float64
	Unit    Unit
	// Converted is true when Value differs in unit from the raw field
	Converted bool

	raw string
}

// String renders the value without the unit suffix
func (t Temperature) String() string {
	if !t.Present {
		return ""
	}
	if t.Converted {
		return strconv.FormatFloat(t.Value, 'f', 1, 64)
	}
	return t.raw
}

// Normalize computes the display temperature of ev in the target unit.
// The event's fields are left untouched.
func Normalize(ev *event.Event, target Unit) Temperature {
	f, native, ok := pickField(ev.Fields, target)
	if !ok {
		return Temperature{}
	}

	t := Temperature{Present: true, Unit: native, raw: f.String()}
	v, numeric := f.Float()
	if !numeric {
		return t
	}
	t.Numeric = true
	t.Value = v

	switch {
	case native == Celsius && target == Fahrenheit:
		t.Value, t.Unit, t.Converted = CelsiusToFahrenheit(v), Fahrenheit, true
	case native == Fahrenheit && target == Celsius:
		t.Value, t.Unit, t.Converted = FahrenheitToCelsius(v), Celsius, true
	}
	return t
}

func pickField(fields event.Fields, target Unit) (event.Field, Unit, bool) {
	c, hasC := fields.Get(event.KeyTemperatureC)
	f, hasF := fields.Get(event.KeyTemperatureF)

	switch {
	case hasC && hasF && target == Fahrenheit:
		return f, Fahrenheit, true
	case hasC:
		return c, Celsius, true
	case hasF:
		return f, Fahrenheit, true
	}
	return event.Field{}, Native, false
}
