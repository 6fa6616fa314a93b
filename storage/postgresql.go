package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgreSQLStorage stores readings in PostgreSQL
type PostgreSQLStorage struct {
	sqlStorage
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id SERIAL PRIMARY KEY,
		sensor_key VARCHAR(255) NOT NULL,
		unix_time BIGINT NOT NULL,
		fields JSONB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_key ON sensor_readings(sensor_key)`,
	`CREATE INDEX IF NOT EXISTS idx_unix_time ON sensor_readings(unix_time)`,
}

// NewPostgreSQLStorage connects and makes sure the table exists
func NewPostgreSQLStorage(dsn string) (*PostgreSQLStorage, error) {
	db, err := openSQL("postgres", dsn)
	if err != nil {
		return nil, err
	}

	storage := newPostgreSQLStorage(db)
	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postgresql storage failed: %w", err)
	}
	return storage, nil
}

func newPostgreSQLStorage(db *sql.DB) *PostgreSQLStorage {
	return &PostgreSQLStorage{sqlStorage{
		db:        db,
		name:      "postgresql",
		schema:    postgresSchema,
		insertSQL: "INSERT INTO sensor_readings (sensor_key, unix_time, fields) VALUES ($1, $2, $3)",
	}}
}
