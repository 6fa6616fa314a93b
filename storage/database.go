package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/eddielth/sdr-weather/logger"
)

// DatabaseType
type DatabaseType string

const (
	// MySQL
	MySQL DatabaseType = "mysql"
	// PostgreSQL
	PostgreSQL DatabaseType = "postgresql"
)

// DatabaseStorage
type DatabaseStorage interface {
	StorageBackend
	// InitDatabase creates the readings table if needed
	InitDatabase() error
}

// NewDatabaseStorage
func NewDatabaseStorage(dbType string, dsn string) (DatabaseStorage, error) {
	switch DatabaseType(dbType) {
	case MySQL:
		return NewMySQLStorage(dsn)
	case PostgreSQL:
		return NewPostgreSQLStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// sqlStorage mirrors accepted rows into a sensor_readings table
type sqlStorage struct {
	db        *sql.DB
	name      string
	schema    []string
	insertSQL string
}

func openSQL(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s failed: %w", driver, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Minute * 5)
	return db, nil
}

func (s *sqlStorage) Name() string { return s.name }

// InitDatabase runs the schema statements
func (s *sqlStorage) InitDatabase() error {
	for _, stmt := range s.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init %s schema failed: %w", s.name, err)
		}
	}
	logger.Info("%s table sensor_readings ready", s.name)
	return nil
}

// Store inserts one record, fields kept as an ordered JSON object
func (s *sqlStorage) Store(rec Record) error {
	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("serialize fields failed: %w", err)
	}

	if _, err := s.db.Exec(s.insertSQL, rec.SensorKey, rec.Time, string(fields)); err != nil {
		return fmt.Errorf("insert reading failed: %w", err)
	}

	logger.Debug("stored %q to %s", rec.SensorKey, s.name)
	return nil
}

func (s *sqlStorage) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close %s failed: %w", s.name, err)
	}
	logger.Info("%s connection closed", s.name)
	return nil
}
