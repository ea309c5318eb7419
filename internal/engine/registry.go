package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds one workspace per tenant, loading each lazily.
type Registry struct {
	mu     sync.Mutex
	loader Loader
	opts   []Option
	spaces map[string]*Workspace
}

// NewRegistry creates a registry. A nil loader starts every tenant empty.
func NewRegistry(loader Loader, opts ...Option) *Registry {
	return &Registry{loader: loader, opts: opts, spaces: map[string]*Workspace{}}
}

// Get returns the tenant's workspace, loading it on first use.
func (r *Registry) Get(ctx context.Context, tenant string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.spaces[tenant]; ok {
		return w, nil
	}
	var st State
	if r.loader != nil {
		var err error
		if st, err = r.loader.Load(ctx, tenant); err != nil {
			log.Error("registry-get:load", slog.String("tenant", tenant), slog.String("err", err.Error()))
			return nil, fmt.Errorf("load tenant %s: %w", tenant, err)
		}
	}
	w := NewFromState(tenant, st, r.opts...)
	r.spaces[tenant] = w
	log.Info("registry-get:loaded", slog.String("tenant", tenant),
		slog.Int("employees", len(st.Employees)), slog.Int("projects", len(st.Projects)))
	return w, nil
}

// Evict drops the cached workspace so the next Get reloads it.
func (r *Registry) Evict(tenant string) {
	r.mu.Lock()
	delete(r.spaces, tenant)
	r.mu.Unlock()
}

// Tenants lists the loaded tenants.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.spaces))
	for t := range r.spaces {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
