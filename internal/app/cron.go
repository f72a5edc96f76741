package app

import (
	"context"
	"time"

	"github.com/replyflow/core/internal/config"
	pkgcron "github.com/replyflow/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, s *services, cfg *config.AppConfig, logger *zap.Logger) {
	sched.Register(pkgcron.Job{
		Name:        "gate_sweep",
		Description: "Abandon follower confirmations past their deadline",
		Interval:    cfg.Gating.SweepInterval,
		Fn: func(ctx context.Context) error {
			_, err := s.gates.Sweep(ctx, time.Now().UTC())
			return err
		},
	})

	if s.snapshot == nil {
		logger.Info("snapshot export disabled")
		return
	}
	sched.Register(pkgcron.Job{
		Name:        "snapshot_export",
		Description: "Export every owner's automations and flows to object storage",
		Interval:    cfg.Snapshot.Interval,
		Fn:          s.snapshot.Run,
	})
}
