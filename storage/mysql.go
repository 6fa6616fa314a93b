package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStorage stores readings in MySQL
type MySQLStorage struct {
	sqlStorage
}

var mysqlSchema = []string{`
	CREATE TABLE IF NOT EXISTS sensor_readings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sensor_key VARCHAR(255) NOT NULL,
		unix_time BIGINT NOT NULL,
		fields JSON,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_sensor_key (sensor_key),
		INDEX idx_unix_time (unix_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// NewMySQLStorage connects and makes sure the table exists
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	db, err := openSQL("mysql", dsn)
	if err != nil {
		return nil, err
	}

	storage := newMySQLStorage(db)
	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init mysql storage failed: %w", err)
	}
	return storage, nil
}

func newMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{sqlStorage{
		db:        db,
		name:      "mysql",
		schema:    mysqlSchema,
		insertSQL: "INSERT INTO sensor_readings (sensor_key, unix_time, fields) VALUES (?, ?, ?)",
	}}
}
