package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// RunKind tells what a recorded run did with the scene.
type RunKind string

const (
	RunKindBuild RunKind = "build"
	RunKindLint  RunKind = "lint"
)

// RunStatus represents the outcome of a run
type RunStatus string

const (
	// RunStatusPassed means the script ran and no blocking finding was made.
	RunStatusPassed RunStatus = "passed"

	// RunStatusFailed means lint reported blocking findings.
	RunStatusFailed RunStatus = "failed"

	// RunStatusError means the script itself failed.
	RunStatusError RunStatus = "error"
)

// Run is one recorded script run.
type Run struct {
	ID        string        `json:"id"`
	Script    string        `json:"script"`
	Kind      RunKind       `json:"kind"`
	Status    RunStatus     `json:"status"`
	Nodes     int           `json:"nodes"`
	Roots     int           `json:"roots"`
	MaxDepth  int           `json:"max_depth"`
	Duration  time.Duration `json:"duration"`
	Error     *string       `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	CreatedAt time.Time     `json:"created_at"`
	Findings  []Finding     `json:"findings,omitempty"`
}

// Finding is one policy violation or warning reported for a run.
type Finding struct {
	Policy   string `json:"policy"`
	Severity string `json:"severity"`
	Node     string `json:"node,omitempty"`
	Message  string `json:"message"`
}

// RunFilter selects runs for ListRuns. Zero fields do not filter.
type RunFilter struct {
	Script string
	Kind   RunKind
	Status RunStatus
	Limit  int
	Offset int
}

// PolicyCount is the number of findings a policy produced across runs.
type PolicyCount struct {
	Policy string `json:"policy"`
	Count  int    `json:"count"`
}

// Store defines the interface for the run history
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, script string, keep int) (int64, error)

	// Finding statistics
	CountFindings(ctx context.Context, script string) ([]PolicyCount, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
