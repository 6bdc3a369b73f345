package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver registration.
	_ "github.com/lib/pq"

	"github.com/spigell/programme-advisor/internal/contract"
)

const listProgrammesQuery = `SELECT
	COALESCE(title, ''),
	COALESCE(category, ''),
	COALESCE(description, ''),
	COALESCE(url, ''),
	COALESCE(fee, ''),
	COALESCE(format, ''),
	COALESCE(location, ''),
	COALESCE(start_date, '')
FROM programmes`

// PostgresStore reads the catalogue from the programmes table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool for dsn. The connection is established lazily.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing pool.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListEntries returns every row in the order the database yields them.
func (s *PostgresStore) ListEntries(ctx context.Context) (contract.Catalogue, error) {
	rows, err := s.db.QueryContext(ctx, listProgrammesQuery)
	if err != nil {
		return nil, fmt.Errorf("query programmes: %w", err)
	}
	defer rows.Close()

	var entries contract.Catalogue
	for rows.Next() {
		var e contract.CatalogueEntry
		if err := rows.Scan(&e.Title, &e.Category, &e.Description, &e.URL, &e.Fee, &e.Format, &e.Location, &e.StartDate); err != nil {
			return nil, fmt.Errorf("scan programme: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programmes: %w", err)
	}

	return entries, nil
}

// Ping tests the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
