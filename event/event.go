package event

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Well-known keys emitted by rtl_433 in JSON mode
const (
	KeyTime         = "time"
	KeyModel        = "model"
	KeyID           = "id"
	KeyChannel      = "channel"
	KeyBatteryOK    = "battery_ok"
	KeyTemperatureC = "temperature_C"
	KeyTemperatureF = "temperature_F"
	KeyHumidity     = "humidity"
)

// Field is one key/value pair exactly as the decoder emitted it
type Field struct {
	Key string
	Raw json.RawMessage
}

// String renders the value for log columns and display.
// Strings are unquoted, numbers keep their literal text, null becomes "".
func (f Field) String() string {
	raw := bytes.TrimSpace(f.Raw)
	if len(raw) == 0 || f.IsNull() {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if raw[0] == '{' || raw[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return string(raw)
}

// Float returns the numeric value of the field, ok is false for non-numbers
func (f Field) Float() (float64, bool) {
	raw := bytes.TrimSpace(f.Raw)
	if len(raw) == 0 || raw[0] == '"' || raw[0] == '{' || raw[0] == '[' {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsNull reports whether the field holds a JSON null
func (f Field) IsNull() bool {
	return bytes.Equal(bytes.TrimSpace(f.Raw), []byte("null"))
}

// Value decodes the raw literal into a plain Go value
func (f Field) Value() interface{} {
	var v interface{}
	if err := json.Unmarshal(f.Raw, &v); err != nil {
		return f.String()
	}
	return v
}

// Fields is the ordered field list of one event
type Fields []Field

// Get returns the field with the given key
func (fs Fields) Get(key string) (Field, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports key membership
func (fs Fields) Has(key string) bool {
	_, ok := fs.Get(key)
	return ok
}

// Keys returns the field names in order
func (fs Fields) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the stringified values in order
func (fs Fields) Values() []string {
	values := make([]string, len(fs))
	for i, f := range fs {
		values[i] = f.String()
	}
	return values
}

// Map returns the fields as a plain map, for script and template consumers
func (fs Fields) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(fs))
	for _, f := range fs {
		m[f.Key] = f.Value()
	}
	return m
}

// MarshalJSON encodes the fields as an object, keeping the decoded order
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(bytes.TrimSpace(f.Raw)) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Event is one decoded transmission
type Event struct {
	// Time is the transmission time in Unix seconds, 0 when the decoder gave none
	Time int64
	// TimeText is the timestamp as received, empty when absent
	TimeText string

	Model   *string
	ID      *string
	Channel *string

	// Key identifies the physical sensor
	Key    string
	Fields Fields
}

// HasMeasurement reports whether the event carries a temperature or humidity entry
func (e *Event) HasMeasurement() bool {
	return e.Fields.Has(KeyTemperatureC) || e.Fields.Has(KeyTemperatureF) || e.Fields.Has(KeyHumidity)
}

// LowBattery reports battery_ok == 0
func (e *Event) LowBattery() bool {
	f, ok := e.Fields.Get(KeyBatteryOK)
	if !ok {
		return false
	}
	v, ok := f.Float()
	return ok && v == 0
}

// SensorKey builds the sensor identity from the optional model, id and channel
func SensorKey(model, id, channel *string) string {
	parts := make([]string, 0, 3)
	if model != nil && *model != "" {
		parts = append(parts, *model)
	}
	if id != nil {
		parts = append(parts, "Id "+*id)
	}
	if channel != nil {
		parts = append(parts, "Ch "+*channel)
	}
	return strings.Join(parts, " ")
}
