package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultTimeLayout is the rtl_433 "time" format
const DefaultTimeLayout = "2006-01-02 15:04:05"

// ErrDecode marks lines that are not sensor events
var ErrDecode = errors.New("not a sensor event")

// DecodeError carries the offending line
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrDecode
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decoder turns raw decoder lines into events
type Decoder struct {
	Layout   string
	Location *time.Location
}

// NewDecoder creates a decoder; empty layout and nil location fall back to the defaults
func NewDecoder(layout string, loc *time.Location) *Decoder {
	if layout == "" {
		layout = DefaultTimeLayout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Decoder{Layout: layout, Location: loc}
}

// Decode parses one line. Failures are returned as *DecodeError.
func (d *Decoder) Decode(line string) (*Event, error) {
	fields, err := parseObject(line)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}

	ev := &Event{Fields: fields}

	if f, ok := fields.Get(KeyTime); ok {
		var text string
		if err := json.Unmarshal(f.Raw, &text); err != nil {
			return nil, &DecodeError{Line: line, Err: fmt.Errorf("time is not a string: %s", f.Raw)}
		}
		ts, err := time.ParseInLocation(d.Layout, text, d.Location)
		if err != nil {
			return nil, &DecodeError{Line: line, Err: fmt.Errorf("parse time: %w", err)}
		}
		ev.Time = ts.Unix()
		ev.TimeText = text
	}

	ev.Model = optional(fields, KeyModel)
	ev.ID = optional(fields, KeyID)
	ev.Channel = optional(fields, KeyChannel)
	ev.Key = SensorKey(ev.Model, ev.ID, ev.Channel)

	return ev, nil
}

func optional(fields Fields, key string) *string {
	f, ok := fields.Get(key)
	if !ok {
		return nil
	}
	s := f.String()
	return &s
}

// parseObject reads exactly one JSON object and keeps its key order
func parseObject(line string) (Fields, error) {
	dec := json.NewDecoder(strings.NewReader(line))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields Fields
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		raw = append(json.RawMessage(nil), bytes.TrimSpace(raw)...)

		if i, dup := index[key]; dup {
			fields[i].Raw = raw
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Key: key, Raw: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}

	return fields, nil
}
