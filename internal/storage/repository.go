package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a storage backend.
//
// Kind must match a registered backend ("sqlite", "postgres"); DSN is passed
// through to the backend factory and validated there.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic persistence surface for workflows,
// uploads, and chart definitions.
//
// IMPORTANT: every workflow lookup is scoped by the owning user id. Backends
// must never return another owner's workflow; callers treat "wrong owner"
// and "missing" identically as ErrNotFound.
type Repository interface {
	// EnsureSchema creates tables if they do not exist. Idempotent; called
	// once at startup.
	EnsureSchema(ctx context.Context) error

	// Close releases backend resources. Call once at process shutdown.
	Close()

	// Workflows.
	CreateWorkflow(ctx context.Context, w *Workflow) error
	ListWorkflows(ctx context.Context, ownerID int64) ([]Workflow, error)
	GetWorkflow(ctx context.Context, ownerID, id int64) (Workflow, error)
	GetWorkflowByName(ctx context.Context, ownerID int64, nome string) (Workflow, error)
	UpdateWorkflow(ctx context.Context, w Workflow) error
	// DeleteWorkflow removes the workflow row and its upload/chart rows in
	// one transaction. Physical upload files are the caller's problem.
	DeleteWorkflow(ctx context.Context, ownerID, id int64) error

	// Uploads. List omits the record blob; Get/Latest include it.
	CreateUpload(ctx context.Context, u *Upload) error
	ListUploads(ctx context.Context, workflowID int64, categoria string) ([]Upload, error)
	ListUploadsByWorkflow(ctx context.Context, workflowID int64) ([]Upload, error)
	GetUpload(ctx context.Context, workflowID int64, categoria string, id int64) (Upload, error)
	LatestUpload(ctx context.Context, workflowID int64, categoria string) (Upload, error)
	UpdateHiddenRows(ctx context.Context, uploadID int64, indices []int) error
	DeleteUpload(ctx context.Context, id int64) error
	CategoriesWithData(ctx context.Context, workflowID int64) ([]string, error)

	// Charts.
	CreateChart(ctx context.Context, c *Chart) error
	ListCharts(ctx context.Context, workflowID int64) ([]Chart, error)
	GetChart(ctx context.Context, workflowID, chartID int64) (Chart, error)
	UpdateChart(ctx context.Context, c Chart) error
	DeleteChart(ctx context.Context, workflowID, chartID int64) error

	// Theme preference, a per-user key-value pair. GetUserTheme returns ""
	// when the user has no stored preference.
	GetUserTheme(ctx context.Context, userID int64) (string, error)
	SetUserTheme(ctx context.Context, userID int64, name string) error
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() in the backend package. Registering the same
// kind twice panics; this fails fast instead of allowing ambiguous backend
// selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Repository using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
