// internal/scheduler/occupancy_reporter.go
package scheduler

import (
	"context"
	"log/slog"

	"echo-dispatcher/internal/domain"

	"github.com/robfig/cron/v3"
)

// OccupancyReporter periodically logs slot occupancy. Saturation changes are
// pushed by the slot table itself; the reporter only samples.
type OccupancyReporter struct {
	cron   *cron.Cron
	slots  domain.SlotSource
	logger *slog.Logger
}

// NewOccupancyReporter creates a reporter over slots.
func NewOccupancyReporter(slots domain.SlotSource, logger *slog.Logger) *OccupancyReporter {
	return &OccupancyReporter{
		cron:   cron.New(),
		slots:  slots,
		logger: logger.With("component", "occupancy-reporter"),
	}
}

// Schedule registers the report on a standard cron spec or descriptor
// such as "@every 30s".
func (r *OccupancyReporter) Schedule(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.Report); err != nil {
		r.logger.Error("failed to schedule occupancy report", "schedule", spec, "error", err)
		return err
	}
	r.logger.Info("scheduled occupancy report", "schedule", spec)
	return nil
}

// Report takes one snapshot and logs it.
func (r *OccupancyReporter) Report() {
	snap := r.slots.Snapshot()
	r.logger.Info("slot occupancy",
		"in_use", snap.InUse,
		"capacity", snap.Capacity,
		"saturated", snap.Saturated(),
	)
}

// Start runs the cron loop until ctx is done.
func (r *OccupancyReporter) Start(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("occupancy reporter stopped")
	return ctx.Err()
}
