package event

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func newTestDecoder() *Decoder {
	return NewDecoder("", time.UTC)
}

func TestDecodeAcuriteTower(t *testing.T) {
	is := is.New(t)

	line := `{"time" : "2024-01-01 00:00:00", "model" : "Acurite-Tower", "id" : 12, "channel" : "A", "battery_ok" : 1, "temperature_C" : 21.0, "humidity" : 50, "mic" : "CHECKSUM"}`
	ev, err := newTestDecoder().Decode(line)
	is.NoErr(err)

	is.Equal(ev.Time, int64(1704067200))
	is.Equal(ev.TimeText, "2024-01-01 00:00:00")
	is.Equal(ev.Key, "Acurite-Tower Id 12 Ch A")
	is.Equal(ev.Fields.Keys(), []string{"time", "model", "id", "channel", "battery_ok", "temperature_C", "humidity", "mic"})
	is.Equal(ev.Fields.Values(), []string{"2024-01-01 00:00:00", "Acurite-Tower", "12", "A", "1", "21.0", "50", "CHECKSUM"})
	is.True(ev.HasMeasurement())
	is.True(!ev.LowBattery())
}

func TestDecodeOptionalIdentity(t *testing.T) {
	is := is.New(t)

	ev, err := newTestDecoder().Decode(`{"model":"Generic-Remote","cmd":5}`)
	is.NoErr(err)
	is.Equal(ev.Time, int64(0))
	is.Equal(ev.Key, "Generic-Remote")
	is.True(ev.ID == nil)
	is.True(ev.Channel == nil)
	is.True(!ev.HasMeasurement())

	ev, err = newTestDecoder().Decode(`{"id":7,"channel":2}`)
	is.NoErr(err)
	is.Equal(ev.Key, "Id 7 Ch 2")
}

func TestDecodeNullMeasurementCountsAsPresent(t *testing.T) {
	is := is.New(t)

	ev, err := newTestDecoder().Decode(`{"model":"X","humidity":null,"battery_ok":0}`)
	is.NoErr(err)
	is.True(ev.HasMeasurement())
	is.True(ev.LowBattery())

	f, ok := ev.Fields.Get("humidity")
	is.True(ok)
	is.True(f.IsNull())
	is.Equal(f.String(), "")
}

func TestDecodeFailures(t *testing.T) {
	lines := []string{
		"",
		"Found Rafael Micro R820T tuner",
		"[1, 2, 3]",
		`"just a string"`,
		`{"model":"X"`,
		`{"model":"X"} trailing`,
		`{"time":"yesterday","model":"X"}`,
		`{"time":1704067200,"model":"X"}`,
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			is := is.New(t)

			ev, err := newTestDecoder().Decode(line)
			is.True(ev == nil)
			is.True(errors.Is(err, ErrDecode))

			var de *DecodeError
			is.True(errors.As(err, &de))
			is.Equal(de.Line, line)
		})
	}
}

func TestDecodeDuplicateKeyKeepsPosition(t *testing.T) {
	is := is.New(t)

	ev, err := newTestDecoder().Decode(`{"a":1,"b":2,"a":3}`)
	is.NoErr(err)
	is.Equal(ev.Fields.Keys(), []string{"a", "b"})
	is.Equal(ev.Fields.Values(), []string{"3", "2"})
}

func TestDecodeUsesLocation(t *testing.T) {
	is := is.New(t)

	loc := time.FixedZone("UTC+1", 3600)
	ev, err := NewDecoder("", loc).Decode(`{"time":"2024-01-01 01:00:00","model":"X"}`)
	is.NoErr(err)
	is.Equal(ev.Time, int64(1704067200))
}

func TestFieldsMarshalJSONKeepsOrder(t *testing.T) {
	is := is.New(t)

	ev, err := newTestDecoder().Decode(`{"z":1,"a":{"x": [1, 2]},"m":null}`)
	is.NoErr(err)

	b, err := ev.Fields.MarshalJSON()
	is.NoErr(err)
	is.Equal(string(b), `{"z":1,"a":{"x": [1, 2]},"m":null}`)

	f, _ := ev.Fields.Get("a")
	is.Equal(f.String(), `{"x":[1,2]}`)
}

func TestSensorKey(t *testing.T) {
	is := is.New(t)

	model, id, ch := "Ambientweather-F007TH", "45", "1"
	is.Equal(SensorKey(&model, &id, &ch), "Ambientweather-F007TH Id 45 Ch 1")
	is.Equal(SensorKey(&model, nil, &ch), "Ambientweather-F007TH Ch 1")
	is.Equal(SensorKey(nil, nil, nil), "")
}

func TestFieldsMapDecodesValues(t *testing.T) {
	is := is.New(t)

	ev, err := newTestDecoder().Decode(`{"model":"X","id":12,"battery_ok":0,"rows":[1,2],"m":null}`)
	is.NoErr(err)

	m := ev.Fields.Map()
	is.Equal(len(m), 5)
	is.Equal(m["model"], "X")
	is.Equal(m["id"], 12.0)
	is.Equal(m["battery_ok"], 0.0)
	is.Equal(m["rows"], []interface{}{1.0, 2.0})
	is.Equal(m["m"], nil)

	f, _ := ev.Fields.Get("m")
	is.True(f.IsNull())
	is.Equal(f.String(), "")
}
