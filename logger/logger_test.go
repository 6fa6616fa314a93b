package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestParseLogLevel(t *testing.T) {
	is := is.New(t)

	lvl, err := ParseLogLevel("warning")
	is.NoErr(err)
	is.Equal(lvl, WARN)

	lvl, err = ParseLogLevel("")
	is.NoErr(err)
	is.Equal(lvl, INFO)

	_, err = ParseLogLevel("verbose")
	is.True(err != nil)
}

func TestLevelFiltersMessages(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	l := newWithWriter(&buf, WARN, nil)

	l.Info("dropped %d", 1)
	l.Warn("kept %d", 2)

	out := buf.String()
	is.True(!strings.Contains(out, "dropped"))
	is.True(strings.Contains(out, "kept 2"))

	l.SetLevel(DEBUG)
	l.Debug("now visible")
	is.True(strings.Contains(buf.String(), "now visible"))
	is.Equal(l.Level(), DEBUG)
}

func TestFileOutput(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := New(LoggerConfig{Level: INFO, FilePath: path, MaxSize: 1, MaxBackups: 1})
	is.NoErr(err)

	l.Error("disk %s", "full")
	is.NoErr(l.Close())

	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.True(strings.Contains(string(data), "disk full"))
}

func TestDefaultLoggerSetLevel(t *testing.T) {
	is := is.New(t)

	prev := current()
	var buf bytes.Buffer
	SetDefault(newWithWriter(&buf, INFO, nil))
	t.Cleanup(func() {
		defaultMu.Lock()
		defaultLogger = prev
		defaultMu.Unlock()
	})

	Debug("hidden")
	is.NoErr(SetLevel("debug"))
	Debug("shown")
	is.True(SetLevel("loud") != nil)

	is.True(!strings.Contains(buf.String(), "hidden"))
	is.True(strings.Contains(buf.String(), "shown"))
}
