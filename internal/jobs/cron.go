// Package jobs schedules the periodic maintenance tasks.
package jobs

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

var log = slog.Default().With(slog.String("layer", "jobs"))

// QuotaResetter is reset at local midnight.
type QuotaResetter interface {
	ResetDaily()
}

// Start registers the jobs on c and starts it.
func Start(c *cron.Cron, limiter QuotaResetter) error {
	if limiter != nil {
		if _, err := c.AddFunc("0 0 * * *", func() {
			limiter.ResetDaily()
			log.Info("quota-reset:done")
		}); err != nil {
			return err
		}
	}
	c.Start()
	log.Info("cron:started", slog.Int("jobs", len(c.Entries())))
	return nil
}
