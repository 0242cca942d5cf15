package state

import (
	"context"
	"fmt"
	"time"
)

// SaveQuery stores a named query for a connection, replacing one with the same name.
func (s *SQLiteStore) SaveQuery(ctx context.Context, connection, name, sql string) (*SavedQuery, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	if name == "" {
		return nil, fmt.Errorf("query name is required")
	}

	q := &SavedQuery{
		ID:         generateID(),
		Connection: connection,
		Name:       name,
		SQL:        sql,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_queries (id, connection, name, sql, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(connection, name) DO UPDATE SET sql = excluded.sql`,
		q.ID, q.Connection, q.Name, q.SQL, q.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}
	return q, nil
}

// SavedQueries returns the saved queries of a connection ordered by name.
func (s *SQLiteStore) SavedQueries(ctx context.Context, connection string) ([]SavedQuery, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection, name, sql, created_at FROM saved_queries WHERE connection = ? ORDER BY name`,
		connection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved queries: %w", err)
	}
	defer rows.Close()

	var out []SavedQuery
	for rows.Next() {
		var q SavedQuery
		if err := rows.Scan(&q.ID, &q.Connection, &q.Name, &q.SQL, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// DeleteQuery removes a saved query.
func (s *SQLiteStore) DeleteQuery(ctx context.Context, connection, name string) error {
	if s.db == nil {
		return ErrNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE connection = ? AND name = ?`, connection, name)
	if err != nil {
		return fmt.Errorf("failed to delete saved query: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("query %q: %w", name, ErrNotFound)
	}
	return nil
}
