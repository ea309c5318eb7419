package engine

import (
	"context"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

// Persister durably stores workspace mutations. Every method must either apply the
// whole write or fail; the workspace reverts its in-memory state on failure.
type Persister interface {
	// Transaction runs fn against a persister bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Persister) error) error

	SaveEmployee(ctx context.Context, tenant string, e *models.Employee) error
	DeleteEmployee(ctx context.Context, tenant, id string) error
	SaveProject(ctx context.Context, tenant string, p *models.Project) error
	DeleteProject(ctx context.Context, tenant, id string) error
	SaveInvoice(ctx context.Context, tenant string, inv *models.Invoice) error
	DeleteInvoice(ctx context.Context, tenant, id string) error
	SaveAllocations(ctx context.Context, tenant string, changes []allocation.Change) error
	// ReplaceState swaps the whole tenant content, as done by a snapshot import.
	ReplaceState(ctx context.Context, tenant string, st State) error
}

// Loader reads a tenant's persisted state.
type Loader interface {
	Load(ctx context.Context, tenant string) (State, error)
}

// NopPersister accepts every write. It backs in-memory workspaces and tests.
type NopPersister struct{}

func (NopPersister) Transaction(ctx context.Context, fn func(tx Persister) error) error {
	return fn(NopPersister{})
}
func (NopPersister) SaveEmployee(context.Context, string, *models.Employee) error { return nil }
func (NopPersister) DeleteEmployee(context.Context, string, string) error         { return nil }
func (NopPersister) SaveProject(context.Context, string, *models.Project) error   { return nil }
func (NopPersister) DeleteProject(context.Context, string, string) error          { return nil }
func (NopPersister) SaveInvoice(context.Context, string, *models.Invoice) error   { return nil }
func (NopPersister) DeleteInvoice(context.Context, string, string) error          { return nil }
func (NopPersister) SaveAllocations(context.Context, string, []allocation.Change) error {
	return nil
}
func (NopPersister) ReplaceState(context.Context, string, State) error { return nil }
