package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Scan360AI/rnd-credit-manager/internal/cache"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
)

// ReportService returns credit reports, cached per workspace revision.
type ReportService struct {
	cache *cache.Cache
}

func NewReportService(c *cache.Cache) *ReportService { return &ReportService{cache: c} }

func reportKey(w *engine.Workspace, rev uint64) string {
	return fmt.Sprintf("report:%s:%s:%d", w.Tenant(), w.Epoch(), rev)
}

// Report serves the cached report for the current revision or computes and stores it.
// Cache failures are logged and never fail the request.
func (s *ReportService) Report(ctx context.Context, w *engine.Workspace) credit.Report {
	rev := w.Revision()
	key := reportKey(w, rev)
	var cached credit.Report
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("report:cache-get", slog.String("key", key), slog.String("err", err.Error()))
	}
	if hit && cached.Revision == rev {
		return cached
	}
	r := w.Report()
	if r.Revision != rev {
		// a write landed while computing; do not cache under the stale key
		return r
	}
	if err := s.cache.Set(ctx, key, r); err != nil {
		log.Warn("report:cache-set", slog.String("key", key), slog.String("err", err.Error()))
	}
	return r
}
