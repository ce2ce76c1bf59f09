// Package state persists named trees and the history of operations applied
// to them in SQLite.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/datatree/pkg/datatree"
)

// ErrTreeNotFound is returned when no tree has the requested name.
var ErrTreeNotFound = errors.New("tree not found")

// TreeRecord describes a stored tree.
type TreeRecord struct {
	ID        string
	Name      string
	Nodes     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunStatus is the outcome of an operation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one operation applied to a stored tree.
type Run struct {
	ID          string
	TreeName    string
	Operation   string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Store is the persistence interface used by the CLI.
type Store interface {
	SaveTree(ctx context.Context, name string, t *datatree.Tree) (*TreeRecord, error)
	GetTree(ctx context.Context, name string) (*datatree.Tree, *TreeRecord, error)
	ListTrees(ctx context.Context) ([]TreeRecord, error)
	DeleteTree(ctx context.Context, name string) error

	CreateRun(ctx context.Context, treeName, operation string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	ListRuns(ctx context.Context, treeName string, limit int) ([]Run, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
