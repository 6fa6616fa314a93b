package storage

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/logger"
)

// Record is one accepted event as handed to the storage backends
type Record struct {
	SensorKey string
	Time      int64
	Fields    event.Fields
}

// StorageBackend is a destination for accepted records
type StorageBackend interface {
	// Name identifies the backend in errors and logs
	Name() string
	// Store persists one record
	Store(rec Record) error
	// Close releases the backend
	Close() error
}

// PersistError is a storage failure of one backend for one record
type PersistError struct {
	Backend   string
	SensorKey string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("store %q to %s: %v", e.SensorKey, e.Backend, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Manager fans records out to several backends
type Manager struct {
	backends []StorageBackend
	mutex    sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(backends ...StorageBackend) *Manager {
	return &Manager{
		backends: backends,
	}
}

// Store writes rec to every backend. A failing backend does not stop the
// others; all failures come back combined as *PersistError values.
func (m *Manager) Store(rec Record) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var errs error
	for _, backend := range m.backends {
		if err := backend.Store(rec); err != nil {
			errs = multierr.Append(errs, &PersistError{Backend: backend.Name(), SensorKey: rec.SensorKey, Err: err})
		}
	}
	return errs
}

// Len returns the number of registered backends
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.backends)
}

// Close closes all storage backends
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close storage backend %s: %v", backend.Name(), err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// AddBackend adds a new storage backend
func (m *Manager) AddBackend(backend StorageBackend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.backends = append(m.backends, backend)
}
