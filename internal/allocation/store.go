// Package allocation holds the sparse (employee, project) -> percentage relation.
package allocation

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Key identifies one allocation cell.
type Key struct {
	EmployeeID string
	ProjectID  string
}

// Entry is a stored allocation triple.
type Entry struct {
	EmployeeID string `json:"employeeId"`
	ProjectID  string `json:"projectId"`
	Percentage int    `json:"percentage"`
}

// Change records one cell mutation. New == 0 means the key was removed.
type Change struct {
	Key Key
	Old int
	New int
}

// Reader is the read side used by the aggregator.
type Reader interface {
	Get(employeeID, projectID string) int
}

// PersistFunc durably applies a batch of changes.
type PersistFunc func(ctx context.Context, changes []Change) error

// Store is safe for concurrent use. Absence and 0 are equivalent: 0 is never stored.
type Store struct {
	mu    sync.RWMutex
	cells map[Key]int
}

func NewStore() *Store {
	return &Store{cells: make(map[Key]int)}
}

// Normalize converts arbitrary input into a percentage in [0,100].
// Numbers are truncated; anything non-numeric becomes 0.
func Normalize(v any) int {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case float64:
		f = x
	case float32:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(x), "%")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	if f <= 0 {
		return 0
	}
	if f >= 100 {
		return 100
	}
	return int(f)
}

func (s *Store) Get(employeeID, projectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[Key{employeeID, projectID}]
}

// Has reports whether a non-zero value is stored for the pair.
func (s *Store) Has(employeeID, projectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cells[Key{employeeID, projectID}]
	return ok
}

// Len is the number of stored (non-zero) cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Set stores the normalized value and returns the change applied.
func (s *Store) Set(employeeID, projectID string, v any) Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(Key{employeeID, projectID}, Normalize(v))
}

func (s *Store) set(k Key, pct int) Change {
	old := s.cells[k]
	if pct == 0 {
		delete(s.cells, k)
	} else {
		s.cells[k] = pct
	}
	return Change{Key: k, Old: old, New: pct}
}

// DistributeEqually gives every project floor(100/n) and adds the remainder to the
// last project in the given order. Duplicate ids keep their first position.
func (s *Store) DistributeEqually(employeeID string, projectIDs []string) []Change {
	ids := dedupe(projectIDs)
	if len(ids) == 0 {
		return nil
	}
	share := 100 / len(ids)
	rest := 100 - share*len(ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	changes := make([]Change, 0, len(ids))
	for i, p := range ids {
		pct := share
		if i == len(ids)-1 {
			pct += rest
		}
		changes = append(changes, s.set(Key{employeeID, p}, pct))
	}
	return changes
}

func (s *Store) ClearForEmployee(employeeID string) []Change {
	return s.clear(func(k Key) bool { return k.EmployeeID == employeeID })
}

func (s *Store) ClearForProject(projectID string) []Change {
	return s.clear(func(k Key) bool { return k.ProjectID == projectID })
}

func (s *Store) ClearAll() []Change {
	return s.clear(func(Key) bool { return true })
}

func (s *Store) clear(match func(Key) bool) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changes []Change
	for k, v := range s.cells {
		if match(k) {
			changes = append(changes, Change{Key: k, Old: v})
			delete(s.cells, k)
		}
	}
	sortChanges(changes)
	return changes
}

// Revert undoes changes in reverse order.
func (s *Store) Revert(changes []Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(changes) - 1; i >= 0; i-- {
		s.set(changes[i].Key, changes[i].Old)
	}
}

// Apply runs mutate, then persist. If persist fails every change is reverted and the
// store is back to its pre-mutation state.
func (s *Store) Apply(ctx context.Context, mutate func(*Store) []Change, persist PersistFunc) ([]Change, error) {
	changes := effective(mutate(s))
	if len(changes) == 0 || persist == nil {
		return changes, nil
	}
	if err := persist(ctx, changes); err != nil {
		s.Revert(changes)
		return nil, err
	}
	return changes, nil
}

// Entries returns all stored triples sorted by employee then project.
func (s *Store) Entries() []Entry {
	return s.filter(func(Key) bool { return true })
}

func (s *Store) ForEmployee(employeeID string) []Entry {
	return s.filter(func(k Key) bool { return k.EmployeeID == employeeID })
}

func (s *Store) ForProject(projectID string) []Entry {
	return s.filter(func(k Key) bool { return k.ProjectID == projectID })
}

func (s *Store) filter(match func(Key) bool) []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.cells))
	for k, v := range s.cells {
		if match(k) {
			out = append(out, Entry{EmployeeID: k.EmployeeID, ProjectID: k.ProjectID, Percentage: v})
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Store{cells: make(map[Key]int, len(s.cells))}
	for k, v := range s.cells {
		c.cells[k] = v
	}
	return c
}

func effective(changes []Change) []Change {
	out := changes[:0]
	for _, c := range changes {
		if c.Old != c.New {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Key.EmployeeID != changes[j].Key.EmployeeID {
			return changes[i].Key.EmployeeID < changes[j].Key.EmployeeID
		}
		return changes[i].Key.ProjectID < changes[j].Key.ProjectID
	})
}
