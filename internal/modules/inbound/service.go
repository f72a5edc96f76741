package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/dispatch"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/core/gating"
	"github.com/replyflow/core/internal/core/matching"
	"github.com/replyflow/core/internal/models"
	"github.com/replyflow/core/internal/modules/counters"
	gatingmod "github.com/replyflow/core/internal/modules/gating"
	"github.com/replyflow/core/internal/pkg/metrics"
	pkgredis "github.com/replyflow/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	claimPrefix     = "replyflow:event:"
	claimProcessing = "0"
	claimDone       = "1"
	defaultClaimTTL = 24 * time.Hour

	kindEvent    = "event"
	kindPostback = "postback"
)

var errInvalidEvent = errors.New("invalid event")

// AutomationSource loads the automations an event is matched against.
type AutomationSource interface {
	ListActive(ctx context.Context, ownerID string, channel automation.Channel) ([]automation.Automation, error)
	GetByID(ownerID, id string) (*automation.Automation, error)
}

// FollowUpSource loads the stored sequence of an automation.
type FollowUpSource interface {
	List(automationID string) ([]followup.Step, error)
}

// Deps are the collaborators of Service. Metrics and Logger may be nil.
type Deps struct {
	DB          *gorm.DB
	Redis       *pkgredis.Client
	Automations AutomationSource
	FollowUps   FollowUpSource
	Gates       *gatingmod.Service
	Counters    *counters.Service
	Resolver    *dispatch.Resolver
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	ClaimTTL    time.Duration
}

// Service turns inbound comments, DMs and button presses into outbound
// instructions. Each event id is processed at most once per owner.
type Service struct {
	db          *gorm.DB
	rdb         *pkgredis.Client
	automations AutomationSource
	followups   FollowUpSource
	gates       *gatingmod.Service
	counters    *counters.Service
	resolver    *dispatch.Resolver
	metrics     *metrics.Metrics
	logger      *zap.Logger
	claimTTL    time.Duration
	now         func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := d.ClaimTTL
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &Service{
		db:          d.DB,
		rdb:         d.Redis,
		automations: d.Automations,
		followups:   d.FollowUps,
		gates:       d.Gates,
		counters:    d.Counters,
		resolver:    d.Resolver,
		metrics:     d.Metrics,
		logger:      logger.Named("Inbound"),
		claimTTL:    ttl,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one comment or DM.
//
// A DM from a prospect with a pending follower confirmation is first fed to
// that session. Otherwise the event is matched, gated and resolved. A
// matching conflict is returned as an error alongside an Outbound carrying
// StatusConflict.
func (s *Service) Handle(ctx context.Context, ev matching.Event) (dispatch.Outbound, error) {
	if err := validateEvent(ev); err != nil {
		return dispatch.Outbound{}, err
	}
	start := time.Now()
	out, err := s.once(ctx, ev.OwnerUserID, ev.EventID, kindEvent, func() (dispatch.Outbound, error) {
		return s.handle(ctx, ev)
	})
	s.metrics.InboundEvent(string(ev.Type), statusLabel(out, err), time.Since(start))

	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("owner_id", ev.OwnerUserID),
		zap.String("type", string(ev.Type)),
		zap.String("status", string(out.Status)),
	}
	if out.AutomationID != "" {
		fields = append(fields, zap.String("automation_id", out.AutomationID))
	}
	if err != nil {
		s.logger.Warn("inbound event failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("inbound event handled", fields...)
	}
	return out, err
}

// Postback resolves a button press.
func (s *Service) Postback(ctx context.Context, p dispatch.Press) (dispatch.Outbound, error) {
	if err := validatePress(p); err != nil {
		return dispatch.Outbound{}, err
	}
	out, err := s.once(ctx, p.OwnerID, p.EventID, kindPostback, func() (dispatch.Outbound, error) {
		out, err := s.resolver.Press(ctx, p)
		var unresolved *dispatch.UnresolvedPostbackError
		if errors.As(err, &unresolved) {
			s.metrics.DispatchError("unresolved_postback")
		}
		if err != nil {
			return out, err
		}
		if out.Status == dispatch.StatusDispatched {
			s.count(ctx, p.OwnerID, p.ProspectID, p.EventID)
		}
		return out, nil
	})
	s.metrics.PostbackPress(statusLabel(out, err))
	if err != nil {
		s.logger.Warn("postback press failed",
			zap.String("event_id", p.EventID),
			zap.String("owner_id", p.OwnerID),
			zap.String("payload", p.PayloadKey),
			zap.Error(err))
	}
	return out, err
}

// once claims the event id in Redis, runs fn and records the outcome. The
// claim is released when fn fails for a reason other than a decision error,
// so the platform may redeliver the event.
func (s *Service) once(ctx context.Context, ownerID, eventID, kind string, fn func() (dispatch.Outbound, error)) (dispatch.Outbound, error) {
	key := claimPrefix + ownerID + ":" + eventID
	claimed, err := s.rdb.SetNX(ctx, key, claimProcessing, s.claimTTL)
	if err != nil {
		return dispatch.Outbound{}, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if !claimed {
		return dispatch.Outbound{Status: dispatch.StatusDuplicate, Reason: "event already processed"}, nil
	}

	out, err := fn()
	if err != nil && !isDecisionError(err) {
		if delErr := s.rdb.Del(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("release event claim", zap.String("key", key), zap.Error(delErr))
		}
		s.metrics.DispatchError("internal")
		return out, err
	}
	if setErr := s.rdb.Set(ctx, key, claimDone, redis.KeepTTL); setErr != nil {
		s.logger.Warn("mark event claim done", zap.String("key", key), zap.Error(setErr))
	}
	s.record(ctx, ownerID, eventID, kind, out)
	return out, err
}

func (s *Service) handle(ctx context.Context, ev matching.Event) (dispatch.Outbound, error) {
	now := s.now()

	if ev.Type == matching.EventDM {
		out, handled, err := s.confirm(ctx, ev, now)
		if err != nil || handled {
			return out, err
		}
	}

	autos, err := s.automations.ListActive(ctx, ev.OwnerUserID, ev.Channel())
	if err != nil {
		return dispatch.Outbound{}, fmt.Errorf("load automations: %w", err)
	}
	a, err := matching.Match(ev, autos)
	if err != nil {
		var conflict *matching.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.DispatchError("conflict")
			return dispatch.Outbound{Status: dispatch.StatusConflict, Reason: err.Error()}, err
		}
		return dispatch.Outbound{}, err
	}
	if a == nil {
		return dispatch.Outbound{Status: dispatch.StatusNoMatch}, nil
	}

	if a.Gated() {
		decision := gatingmod.Prompt
		err := s.gates.WithLock(ctx, ev.OwnerUserID, ev.AuthorID, func() error {
			var err error
			decision, err = s.gates.Open(*a, ev.AuthorID, now)
			return err
		})
		if err != nil {
			return dispatch.Outbound{}, fmt.Errorf("open gate: %w", err)
		}
		if decision == gatingmod.Prompt {
			out := s.resolver.Gate(*a, ev.Type)
			s.count(ctx, ev.OwnerUserID, ev.AuthorID, ev.EventID)
			return out, nil
		}
	}

	out, err := s.resolve(*a, ev.Type, now)
	if err != nil {
		return dispatch.Outbound{}, err
	}
	s.count(ctx, ev.OwnerUserID, ev.AuthorID, ev.EventID)
	return out, nil
}

// confirm feeds a DM to the prospect's pending gate session. handled is false
// when no session was waiting, or the waiting one expired or lost its
// automation, and the DM must be matched as usual.
func (s *Service) confirm(ctx context.Context, ev matching.Event, now time.Time) (out dispatch.Outbound, handled bool, err error) {
	err = s.gates.WithLock(ctx, ev.OwnerUserID, ev.AuthorID, func() error {
		sess, outcome, err := s.gates.Reply(ev.OwnerUserID, ev.AuthorID, ev.Text, now)
		if err != nil {
			return err
		}
		switch outcome {
		case gating.Ignored:
			out = dispatch.Outbound{
				Status:       dispatch.StatusIgnored,
				Reason:       "awaiting follower confirmation",
				AutomationID: sess.AutomationID,
			}
			handled = true
		case gating.Confirmed:
			a, err := s.automations.GetByID(ev.OwnerUserID, sess.AutomationID)
			if err != nil {
				return err
			}
			if a == nil || !a.Active {
				return s.gates.Abandon(sess, now)
			}
			// The public reply went out with the prompt; only the DM is left.
			if out, err = s.resolve(*a, matching.EventDM, now); err != nil {
				return err
			}
			if err := s.gates.Deliver(sess, now); err != nil {
				return err
			}
			handled = true
		}
		return nil
	})
	if err != nil {
		return dispatch.Outbound{}, false, fmt.Errorf("gate reply: %w", err)
	}
	if handled && out.Status == dispatch.StatusDispatched {
		s.count(ctx, ev.OwnerUserID, ev.AuthorID, ev.EventID)
	}
	return out, handled, nil
}

func (s *Service) resolve(a automation.Automation, trigger matching.EventType, now time.Time) (dispatch.Outbound, error) {
	out := s.resolver.Trigger(a, trigger)
	steps, err := s.followups.List(a.ID)
	if err != nil {
		return dispatch.Outbound{}, fmt.Errorf("load follow-ups: %w", err)
	}
	if len(steps) > 0 {
		out.ScheduleFollowups = followup.Schedule(steps, now)
	}
	return out, nil
}

// count bumps the owner's counters for a DM sent to prospectID. Failures are
// logged; the outbound has already been decided.
func (s *Service) count(ctx context.Context, ownerID, prospectID, eventID string) {
	if s.counters == nil {
		return
	}
	if _, _, err := s.counters.Increment(ctx, ownerID, counters.MessagesSent, "event:"+eventID, 1); err != nil {
		s.metrics.DispatchError("counter")
		s.logger.Warn("increment counter", zap.String("counter", counters.MessagesSent), zap.Error(err))
	}
	if _, _, err := s.counters.Increment(ctx, ownerID, counters.ContactedProspects, "prospect:"+prospectID, 1); err != nil {
		s.metrics.DispatchError("counter")
		s.logger.Warn("increment counter", zap.String("counter", counters.ContactedProspects), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, ownerID, eventID, kind string, out dispatch.Outbound) {
	row := models.ProcessedEventModel{
		OwnerID:      ownerID,
		EventID:      eventID,
		Kind:         kind,
		Status:       string(out.Status),
		Reason:       truncate(out.Reason, 255),
		AutomationID: out.AutomationID,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		s.logger.Warn("record processed event", zap.String("event_id", eventID), zap.Error(err))
	}
}

// isDecisionError reports errors that are a definitive answer for the event
// rather than a failure to produce one.
func isDecisionError(err error) bool {
	var conflict *matching.ConflictError
	var unresolved *dispatch.UnresolvedPostbackError
	return errors.As(err, &conflict) || errors.As(err, &unresolved)
}

func statusLabel(out dispatch.Outbound, err error) string {
	if out.Status != "" {
		return string(out.Status)
	}
	if err != nil {
		return "error"
	}
	return "unknown"
}

func validateEvent(ev matching.Event) error {
	switch {
	case ev.Type != matching.EventComment && ev.Type != matching.EventDM:
		return fmt.Errorf("%w: type must be comment or dm", errInvalidEvent)
	case strings.TrimSpace(ev.OwnerUserID) == "":
		return fmt.Errorf("%w: owner_user_id is required", errInvalidEvent)
	case strings.TrimSpace(ev.AuthorID) == "":
		return fmt.Errorf("%w: author_id is required", errInvalidEvent)
	case strings.TrimSpace(ev.EventID) == "":
		return fmt.Errorf("%w: event_id is required", errInvalidEvent)
	}
	return nil
}

func validatePress(p dispatch.Press) error {
	switch {
	case p.Type != automation.ButtonPostback && p.Type != automation.ButtonWebURL:
		return fmt.Errorf("%w: type must be postback or web_url", errInvalidEvent)
	case strings.TrimSpace(p.OwnerID) == "":
		return fmt.Errorf("%w: owner_user_id is required", errInvalidEvent)
	case strings.TrimSpace(p.ProspectID) == "":
		return fmt.Errorf("%w: author_id is required", errInvalidEvent)
	case strings.TrimSpace(p.EventID) == "":
		return fmt.Errorf("%w: event_id is required", errInvalidEvent)
	case p.Type == automation.ButtonPostback && strings.TrimSpace(p.PayloadKey) == "":
		return fmt.Errorf("%w: payload is required", errInvalidEvent)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
