package storage

import (
	"database/sql"
	"fmt"
	"time"

	"taskflow/internal/domain"

	"github.com/google/uuid"
)

// DBConnectionStore manages saved import-source connections in SQLite.
// Passwords never land here; they live in the secret store.
type DBConnectionStore struct {
	db *DB
}

// NewDBConnectionStore creates a new DBConnectionStore.
func NewDBConnectionStore(db *DB) *DBConnectionStore {
	return &DBConnectionStore{db: db}
}

const dbConnColumns = `id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at`

func scanDBConn(scan func(dest ...any) error) (domain.DatabaseConnection, error) {
	var c domain.DatabaseConnection
	err := scan(&c.ID, &c.Name, &c.Driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.SSLMode, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *DBConnectionStore) CreateConnection(c *domain.DatabaseConnection) error {
	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.conn.Exec(
		`INSERT INTO db_connections (`+dbConnColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *DBConnectionStore) GetConnection(id string) (*domain.DatabaseConnection, error) {
	row := s.db.conn.QueryRow(`SELECT `+dbConnColumns+` FROM db_connections WHERE id = ?`, id)
	c, err := scanDBConn(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("database connection not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *DBConnectionStore) ListConnections() ([]domain.DatabaseConnection, error) {
	rows, err := s.db.conn.Query(`SELECT ` + dbConnColumns + ` FROM db_connections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.DatabaseConnection
	for rows.Next() {
		c, err := scanDBConn(rows.Scan)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *DBConnectionStore) UpdateConnection(c *domain.DatabaseConnection) error {
	c.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE db_connections SET name=?, driver=?, host=?, port=?, database_name=?, username=?, ssl_mode=?, extra_json=?, updated_at=?
		 WHERE id=?`,
		c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON, c.UpdatedAt, c.ID,
	)
	return err
}

func (s *DBConnectionStore) DeleteConnection(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM db_connections WHERE id = ?`, id)
	return err
}
