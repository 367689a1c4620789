// Package tenants provides persistent storage for clients and their
// monitoring platform data sources using SQLite.
package tenants

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aurahq/aura/internal/platform"
)

// ErrNotFound is returned when a client does not exist.
var ErrNotFound = errors.New("tenants: not found")

// Client is one tenant a report can be generated for.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store persists clients and data sources.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens (or creates) the tenant database at dbPath.
func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create tenants directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open tenants database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger.With().Str("component", "tenants").Logger()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize tenants schema: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("Tenant store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS data_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			platform TEXT NOT NULL,
			credentials TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_data_sources_client
		ON data_sources(client_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateClient adds a tenant and returns its ID.
func (s *Store) CreateClient(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO clients (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create client %q: %w", name, err)
	}
	return res.LastInsertId()
}

// GetClient fetches a tenant by ID.
func (s *Store) GetClient(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM clients WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

// ListClients returns all tenants ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes a tenant and its data sources.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM data_sources WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("delete data sources for client %d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	return nil
}

// AddDataSource attaches a platform endpoint to a tenant. Credentials are
// stored as a JSON bundle, interpreted by the platform's connector factory.
func (s *Store) AddDataSource(ctx context.Context, clientID int64, platformName string, credentials map[string]string) (int64, error) {
	blob, err := json.Marshal(credentials)
	if err != nil {
		return 0, fmt.Errorf("encode credentials: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO data_sources (client_id, platform, credentials) VALUES (?, ?, ?)`,
		clientID, platformName, string(blob))
	if err != nil {
		return 0, fmt.Errorf("add data source: %w", err)
	}
	return res.LastInsertId()
}

// ListDataSources returns a tenant's configured platform endpoints.
func (s *Store) ListDataSources(ctx context.Context, clientID int64) ([]platform.DataSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, platform, credentials FROM data_sources WHERE client_id = ? ORDER BY id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list data sources for client %d: %w", clientID, err)
	}
	defer rows.Close()

	var sources []platform.DataSource
	for rows.Next() {
		var ds platform.DataSource
		var blob string
		if err := rows.Scan(&ds.ID, &ds.ClientID, &ds.Platform, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &ds.Credentials); err != nil {
			s.logger.Warn().Err(err).Int64("dataSource", ds.ID).Msg("Skipping data source with malformed credentials")
			continue
		}
		sources = append(sources, ds)
	}
	return sources, rows.Err()
}
