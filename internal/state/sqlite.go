package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.logger.Debug("opened state store", slog.String("path", path))
	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the schema up to date.
func (s *SQLiteStore) InitSchema() error {
	return s.Migrate()
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// --- Tree operations ---

// SaveTree stores t under name, replacing any tree already stored there.
func (s *SQLiteStore) SaveTree(ctx context.Context, name string, t *datatree.Tree) (*TreeRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if name == "" {
		return nil, fmt.Errorf("tree name is required")
	}

	now := time.Now().UTC()
	rec := &TreeRecord{Name: name, Nodes: t.Len(), CreatedAt: now, UpdatedAt: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var created string
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM trees WHERE name = ?`, name).Scan(&rec.ID, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec.ID = generateID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trees (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			rec.ID, name, formatTime(now), formatTime(now),
		); err != nil {
			return nil, fmt.Errorf("failed to insert tree: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up tree: %w", err)
	default:
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE trees SET updated_at = ? WHERE id = ?`, formatTime(now), rec.ID); err != nil {
			return nil, fmt.Errorf("failed to update tree: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tree_nodes WHERE tree_id = ?`, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to clear tree nodes: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tree_nodes (tree_id, position, parent_position, name, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	position := make(map[datatree.NodeID]int, t.Len())
	err = t.Walk(func(id datatree.NodeID) error {
		pos := len(position)
		position[id] = pos

		var parent sql.NullInt64
		if p, ok := t.Parent(id); ok {
			parent = sql.NullInt64{Int64: int64(position[p]), Valid: true}
		}
		var payload sql.NullString
		if data, err := document.MarshalPayload(t.Data(id)); err != nil {
			return fmt.Errorf("node %s: %w", t.Path(id), err)
		} else if data != nil {
			payload = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, pos, parent, t.Name(id), payload); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", t.Path(id), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tree: %w", err)
	}
	s.logger.Debug("saved tree", slog.String("name", name), slog.Int("nodes", rec.Nodes))
	return rec, nil
}

// GetTree loads the tree stored under name.
func (s *SQLiteStore) GetTree(ctx context.Context, name string) (*datatree.Tree, *TreeRecord, error) {
	if s.db == nil {
		return nil, nil, fmt.Errorf("database not opened")
	}

	rec, err := s.getRecord(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, parent_position, name, payload FROM tree_nodes WHERE tree_id = ? ORDER BY position`, rec.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var t *datatree.Tree
	ids := make(map[int64]datatree.NodeID)
	for rows.Next() {
		var (
			pos     int64
			parent  sql.NullInt64
			node    string
			payload sql.NullString
		)
		if err := rows.Scan(&pos, &parent, &node, &payload); err != nil {
			return nil, nil, fmt.Errorf("failed to scan node: %w", err)
		}
		var raw []byte
		if payload.Valid {
			raw = []byte(payload.String)
		}
		ds, err := document.UnmarshalPayload(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", node, err)
		}

		if !parent.Valid {
			if t != nil {
				return nil, nil, fmt.Errorf("tree %q has more than one root", name)
			}
			if t, err = datatree.New(node, ds); err != nil {
				return nil, nil, err
			}
			ids[pos] = t.Root()
			continue
		}
		pid, ok := ids[parent.Int64]
		if !ok || t == nil {
			return nil, nil, fmt.Errorf("node %q references unknown parent %d", node, parent.Int64)
		}
		id, err := t.AddChild(pid, node, ds)
		if err != nil {
			return nil, nil, err
		}
		ids[pos] = id
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	if t == nil {
		return nil, nil, fmt.Errorf("tree %q has no nodes", name)
	}
	rec.Nodes = t.Len()
	return t, rec, nil
}

func (s *SQLiteStore) getRecord(ctx context.Context, name string) (*TreeRecord, error) {
	rec := &TreeRecord{Name: name}
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM trees WHERE name = ?`, name,
	).Scan(&rec.ID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTrees returns every stored tree ordered by name.
func (s *SQLiteStore) ListTrees(ctx context.Context) ([]TreeRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at, t.updated_at, COUNT(n.position)
		FROM trees t
		LEFT JOIN tree_nodes n ON n.tree_id = t.id
		GROUP BY t.id
		ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TreeRecord
	for rows.Next() {
		var rec TreeRecord
		var created, updated string
		if err := rows.Scan(&rec.ID, &rec.Name, &created, &updated, &rec.Nodes); err != nil {
			return nil, fmt.Errorf("failed to scan tree: %w", err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if rec.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trees: %w", err)
	}
	return out, nil
}

// DeleteTree removes the tree stored under name together with its nodes.
func (s *SQLiteStore) DeleteTree(ctx context.Context, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}
	s.logger.Debug("deleted tree", slog.String("name", name))
	return nil
}
