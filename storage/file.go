package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/eddielth/sdr-weather/logger"
)

// HeaderTime is the first column of every sensor log
const HeaderTime = "UnixTime"

// DriftFunc is told when a record's field set no longer matches its file header
type DriftFunc func(sensorKey string, missing, extra []string)

// FileStorage appends records to one CSV file per sensor
type FileStorage struct {
	basePath string
	onDrift  DriftFunc

	mu      sync.Mutex
	headers map[string][]string
}

// NewFileStorage
func NewFileStorage(basePath string) (*FileStorage, error) {
	// make dir
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create dir %s failed: %w", basePath, err)
	}

	logger.Info("init csv storage: %s", basePath)
	return &FileStorage{
		basePath: basePath,
		headers:  make(map[string][]string),
	}, nil
}

// OnDrift registers a callback for header drift
func (fs *FileStorage) OnDrift(fn DriftFunc) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.onDrift = fn
}

// Name implement StorageBackend
func (fs *FileStorage) Name() string { return "csv" }

// Path returns the log file used for a sensor key
func (fs *FileStorage) Path(sensorKey string) string {
	return filepath.Join(fs.basePath, FileName(sensorKey))
}

// Store appends one row, writing the header first if the file is new
func (fs *FileStorage) Store(rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.appendRecord(fs.Path(rec.SensorKey), rec)
}

func (fs *FileStorage) appendRecord(path string, rec Record) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s failed: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s failed: %w", path, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s failed: %w", path, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header, known := fs.headers[path]
	fresh := info.Size() == 0
	switch {
	case fresh:
		header = append([]string{HeaderTime}, rec.Fields.Keys()...)
		if err := w.Write(header); err != nil {
			return fmt.Errorf("encode header failed: %w", err)
		}
	case !known:
		header, err = readHeader(path)
		if err != nil {
			logger.Warn("cannot read header of %s, writing unaligned row: %v", path, err)
			header = nil
		}
	}

	if err := w.Write(fs.alignRow(header, rec)); err != nil {
		return fmt.Errorf("encode row failed: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode row failed: %w", err)
	}

	// header and row go out in a single write
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write file %s failed: %w", path, err)
	}

	if header != nil {
		fs.headers[path] = header
	}
	if fresh {
		logger.Info("created sensor log %s", path)
	}
	return nil
}

// alignRow lays the record out under header. Columns are matched by name so a
// sensor whose field set changes never shifts data into the wrong column.
func (fs *FileStorage) alignRow(header []string, rec Record) []string {
	ts := strconv.FormatInt(rec.Time, 10)
	keys := rec.Fields.Keys()

	if header == nil || equalKeys(header[1:], keys) {
		return append([]string{ts}, rec.Fields.Values()...)
	}

	row := make([]string, len(header))
	row[0] = ts
	inHeader := make(map[string]bool, len(header))
	var missing []string
	for i, col := range header[1:] {
		inHeader[col] = true
		if f, ok := rec.Fields.Get(col); ok {
			row[i+1] = f.String()
		} else {
			missing = append(missing, col)
		}
	}

	var extra []string
	for _, k := range keys {
		if !inHeader[k] {
			extra = append(extra, k)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		// same keys in another order
		return row
	}

	logger.Warn("field set of %q drifted from its log header: missing %v, dropped %v", rec.SensorKey, missing, extra)
	if fs.onDrift != nil {
		fs.onDrift(rec.SensorKey, missing, extra)
	}
	return row
}

// Close implement StorageBackend
func (fs *FileStorage) Close() error {
	return nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != HeaderTime {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	return header, nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FileName maps a sensor key to a safe, stable file name
func FileName(sensorKey string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, sensorKey)

	name = strings.Trim(name, " .")
	if name == "" {
		name = "unknown"
	}
	return name + ".csv"
}
