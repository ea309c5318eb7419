package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

func (w *Workspace) persistAllocations(ctx context.Context, changes []allocation.Change) error {
	return w.persist.SaveAllocations(ctx, w.tenant, changes)
}

// applyAllocations validates under the write lock, then mutates the store and persists.
// The store reverts itself when persistence fails.
func (w *Workspace) applyAllocations(ctx context.Context, op string, check func() error, mutate func(*allocation.Store) []allocation.Change) ([]allocation.Change, error) {
	var applied []allocation.Change
	err := w.update(func() (bool, error) {
		if check != nil {
			if err := check(); err != nil {
				return false, err
			}
		}
		changes, err := w.alloc.Apply(ctx, mutate, w.persistAllocations)
		if err != nil {
			log.Error(op+":rollback", slog.String("tenant", w.tenant), slog.String("err", err.Error()))
			return false, fmt.Errorf("%s: %w", op, err)
		}
		applied = changes
		return len(changes) > 0, nil
	})
	return applied, err
}

func (w *Workspace) requireEmployee(id string) error {
	if _, ok := w.employees[id]; !ok {
		return apperr.NotFound("employee", id)
	}
	return nil
}

func (w *Workspace) requireProject(id string) error {
	if _, ok := w.projects[id]; !ok {
		return apperr.NotFound("project", id)
	}
	return nil
}

// SetAllocation stores a percentage for (employee, project). The value is normalized:
// numbers are truncated and clamped to [0,100], anything else becomes 0.
func (w *Workspace) SetAllocation(ctx context.Context, employeeID, projectID string, value any) (int, error) {
	pct := allocation.Normalize(value)
	_, err := w.applyAllocations(ctx, "set-allocation",
		func() error {
			if err := w.requireEmployee(employeeID); err != nil {
				return err
			}
			return w.requireProject(projectID)
		},
		func(s *allocation.Store) []allocation.Change {
			return []allocation.Change{s.Set(employeeID, projectID, pct)}
		})
	if err != nil {
		return 0, err
	}
	return pct, nil
}

// DistributeEqually splits 100% across the given projects. Unknown projects are rejected.
func (w *Workspace) DistributeEqually(ctx context.Context, employeeID string, projectIDs []string) ([]allocation.Entry, error) {
	if len(projectIDs) == 0 {
		return nil, apperr.Invalid("project_ids", "at least one project required")
	}
	_, err := w.applyAllocations(ctx, "distribute-equally",
		func() error {
			if err := w.requireEmployee(employeeID); err != nil {
				return err
			}
			for _, id := range projectIDs {
				if err := w.requireProject(id); err != nil {
					return err
				}
			}
			return nil
		},
		func(s *allocation.Store) []allocation.Change {
			return s.DistributeEqually(employeeID, projectIDs)
		})
	if err != nil {
		return nil, err
	}
	return w.alloc.ForEmployee(employeeID), nil
}

// ClearAllocations removes every allocation of the workspace.
func (w *Workspace) ClearAllocations(ctx context.Context) (int, error) {
	changes, err := w.applyAllocations(ctx, "clear-allocations", nil, func(s *allocation.Store) []allocation.Change {
		return s.ClearAll()
	})
	return len(changes), err
}
