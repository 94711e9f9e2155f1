// Package store persists the exception review queue and the append-only
// accuracy history. Two backends: SQLite for single-node CLI use and
// Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/ripefield/quality-cli/internal/model"
)

// ExceptionFilter specifies criteria for listing queued exceptions.
type ExceptionFilter struct {
	Status   model.ExceptionStatus `json:"status,omitempty"`
	Severity model.Severity        `json:"severity,omitempty"`
	Type     model.ExceptionType   `json:"type,omitempty"`
	Subject  string                `json:"subject,omitempty"`
	Limit    int                   `json:"limit,omitempty"`
	Offset   int                   `json:"offset,omitempty"`
}

// Store defines the persistence interface for the review queue and the
// accuracy history. All write failures are surfaced to the caller: a lost
// escalation is a correctness issue, never a log line.
type Store interface {
	// Review queue
	InsertException(ctx context.Context, rec model.ExceptionRecord) error
	GetException(ctx context.Context, id string) (*model.ExceptionRecord, error)
	ListExceptions(ctx context.Context, filter ExceptionFilter) ([]model.ExceptionRecord, error)

	// Status transitions. Each is a single guarded update keyed by id so
	// concurrent reviewers resolve by last-write-wins at the field level.
	AssignException(ctx context.Context, id, assignee string) error
	ResolveException(ctx context.Context, id string, status model.ExceptionStatus, reviewer, notes string) error

	// AutoResolveDue transitions every pending, eligible record whose
	// auto-resolve timestamp has passed. Returns the number touched.
	// Records already moved out of pending are never touched.
	AutoResolveDue(ctx context.Context, now time.Time) (int, error)

	// Accuracy history (append-only)
	InsertSnapshot(ctx context.Context, snap model.AccuracySnapshot) error
	LatestSnapshot(ctx context.Context, category model.Category) (*model.AccuracySnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
