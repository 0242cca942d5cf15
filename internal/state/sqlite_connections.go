package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"gopkg.in/yaml.v3"
)

// SaveConnection inserts a descriptor or replaces the one with the same name.
// The descriptor keeps its ID when it has one; otherwise a new one is assigned.
func (s *SQLiteStore) SaveConnection(ctx context.Context, d core.Descriptor) (*SavedConnection, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	if d.Name == "" {
		return nil, fmt.Errorf("connection name is required")
	}

	if d.ID == "" {
		existing, err := s.GetConnection(ctx, d.Name)
		switch {
		case err == nil:
			d.ID = existing.ID
		case errors.Is(err, ErrNotFound):
			d.ID = generateID()
		default:
			return nil, err
		}
	}

	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode connection: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connections (id, name, type, global, descriptor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			global = excluded.global,
			descriptor = excluded.descriptor,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Type, d.Global, string(body), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}
	return s.GetConnection(ctx, d.ID)
}

// GetConnection finds a saved connection by ID or name.
func (s *SQLiteStore) GetConnection(ctx context.Context, key string) (*SavedConnection, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, global, descriptor, created_at, updated_at FROM connections WHERE id = ? OR name = ? LIMIT 1`,
		key, key,
	)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return c, nil
}

// ListConnections returns all saved connections ordered by name.
func (s *SQLiteStore) ListConnections(ctx context.Context) ([]*SavedConnection, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, global, descriptor, created_at, updated_at FROM connections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []*SavedConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConnection removes a saved connection and its saved queries.
func (s *SQLiteStore) DeleteConnection(ctx context.Context, key string) error {
	c, err := s.GetConnection(ctx, key)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_queries WHERE connection = ?`, c.Descriptor.Key()); err != nil {
		return fmt.Errorf("failed to delete saved queries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return tx.Commit()
}

// exportFile is the YAML shape of an export; it matches the connections
// section of leapdb.yaml so an export can be pasted into a project file.
type exportFile struct {
	Connections []core.Descriptor `yaml:"connections"`
}

// ExportConnections writes every saved connection as YAML, without passwords.
func (s *SQLiteStore) ExportConnections(ctx context.Context, w io.Writer) error {
	conns, err := s.ListConnections(ctx)
	if err != nil {
		return err
	}
	var out exportFile
	for _, c := range conns {
		d := c.Descriptor
		d.Password = ""
		if d.SSH != nil {
			ssh := *d.SSH
			ssh.Password = ""
			ssh.Passphrase = ""
			d.SSH = &ssh
		}
		out.Connections = append(out.Connections, d)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode connections: %w", err)
	}
	return enc.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (*SavedConnection, error) {
	var (
		c    SavedConnection
		body string
	)
	if err := row.Scan(&c.ID, &c.Global, &body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &c.Descriptor); err != nil {
		return nil, fmt.Errorf("failed to decode connection %s: %w", c.ID, err)
	}
	c.Descriptor.ID = c.ID
	return &c, nil
}
