package app

import (
	"fmt"

	"github.com/replyflow/core/internal/core/dispatch"
	automationmod "github.com/replyflow/core/internal/modules/automation"
	"github.com/replyflow/core/internal/modules/counters"
	followupmod "github.com/replyflow/core/internal/modules/followup"
	"github.com/replyflow/core/internal/modules/flowgraph"
	gatingmod "github.com/replyflow/core/internal/modules/gating"
	"github.com/replyflow/core/internal/modules/inbound"
	"github.com/replyflow/core/internal/modules/postback"
	"github.com/replyflow/core/internal/modules/snapshot"
)

type services struct {
	postbacks   *postback.Service
	followups   *followupmod.Service
	flows       *flowgraph.Service
	gates       *gatingmod.Service
	automations *automationmod.Service
	counters    *counters.Service
	inbound     *inbound.Service
	// nil when snapshot export is disabled
	snapshot *snapshot.Service
}

func (a *App) buildServices() (*services, error) {
	s := &services{
		postbacks: postback.NewService(a.db),
		followups: followupmod.NewService(a.db),
		flows:     flowgraph.NewService(a.db),
		counters:  counters.NewService(a.db),
	}
	s.gates = gatingmod.NewService(gatingmod.NewStore(a.db), a.rc, a.cfg.Gating.ConfirmationTimeout, a.metrics, a.logger)
	s.automations = automationmod.NewService(a.db, s.postbacks, s.followups, s.flows, s.gates, a.logger)
	s.inbound = inbound.NewService(inbound.Deps{
		DB:          a.db,
		Redis:       a.rc,
		Automations: s.automations,
		FollowUps:   s.followups,
		Gates:       s.gates,
		Counters:    s.counters,
		Resolver:    dispatch.NewResolver(sharedRand{}, s.postbacks),
		Metrics:     a.metrics,
		Logger:      a.logger,
		ClaimTTL:    a.cfg.Idempotency.TTL,
	})

	if a.cfg.Snapshot.Enable {
		uploader, err := snapshot.NewS3Uploader(a.cfg.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		s.snapshot = snapshot.NewService(s.automations, s.flows, s.postbacks, s.followups, uploader, a.cfg.Snapshot.Prefix, a.logger)
	}
	return s, nil
}
