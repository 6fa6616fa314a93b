package main

import (
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/eddielth/sdr-weather/config"
	"github.com/eddielth/sdr-weather/source"
)

func TestNewDispatchersNothingEnabled(t *testing.T) {
	is := is.New(t)

	d, script, closeAll, err := newDispatchers(&config.Config{})
	is.NoErr(err)
	is.True(d == nil)
	is.True(script == nil)
	closeAll()
}

func TestNewDispatchersUnreachableBroker(t *testing.T) {
	is := is.New(t)

	cfg := &config.Config{MQTT: config.MQTTConfig{Enabled: true, Broker: "tcp://127.0.0.1:1", Topic: "weather"}}

	d, _, closeAll, err := newDispatchers(cfg)
	is.True(err != nil)
	is.True(d == nil)
	is.True(closeAll != nil)
	closeAll()
	closeAll()
}

func TestNewDispatchersBadScript(t *testing.T) {
	is := is.New(t)

	cfg := &config.Config{Script: config.ScriptConfig{Enabled: true, ScriptCode: "function other() {}"}}

	_, _, closeAll, err := newDispatchers(cfg)
	is.True(err != nil)
	closeAll()
}

func TestNewDispatchersScriptOnly(t *testing.T) {
	is := is.New(t)

	cfg := &config.Config{Script: config.ScriptConfig{Enabled: true, ScriptCode: "function publish(r) {}"}}

	d, script, closeAll, err := newDispatchers(cfg)
	is.NoErr(err)
	defer closeAll()
	is.True(d != nil)
	is.True(script != nil)
}

func TestDecoderExitReportsStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	is := is.New(t)

	src, err := source.StartProcess("sh", "-c", "echo tuner lost; exit 3")
	is.NoErr(err)
	defer src.Close()

	for {
		_, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		is.NoErr(err)
	}

	exitErr := decoderExit(src, 2*time.Second)
	var ee *exec.ExitError
	is.True(errors.As(exitErr, &ee))
	is.Equal(ee.ExitCode(), 3)

	is.NoErr(decoderExit(source.NewReaderSource(strings.NewReader("")), time.Second))
}
