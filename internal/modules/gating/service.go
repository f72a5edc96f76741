package gating

import (
	"context"
	"fmt"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/gating"
	"github.com/replyflow/core/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockPrefix = "replyflow:gate:lock:"
	lockTTL    = 10 * time.Second
	lockWait   = 3 * time.Second
	lockRetry  = 50 * time.Millisecond
)

// Locker serialises work on one key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl, wait, retry time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// Decision tells the caller what to send for a gated trigger.
type Decision int

const (
	// Prompt: ask the prospect to confirm they follow the account.
	Prompt Decision = iota
	// Release: the prospect already confirmed; send the main message.
	Release
)

type Service struct {
	store   *Store
	locker  Locker
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(store *Store, locker Locker, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = gating.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, locker: locker, timeout: timeout, metrics: m, logger: logger.Named("Gating")}
}

// WithLock runs fn while holding the lock of one (owner, prospect) pair.
func (s *Service) WithLock(ctx context.Context, ownerID, prospectID string, fn func() error) error {
	key := lockPrefix + ownerID + ":" + prospectID
	token, err := s.locker.Lock(ctx, key, lockTTL, lockWait, lockRetry)
	if err != nil {
		return fmt.Errorf("gate lock %s: %w", key, err)
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("release gate lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

// Open handles a gated trigger. A prospect who already confirmed is released;
// otherwise a session is started or kept awaiting. A session still confirmed
// but never marked delivered is moved to delivered, since Release sends the
// main message. Call under WithLock.
func (s *Service) Open(a automation.Automation, prospectID string, now time.Time) (Decision, error) {
	cur, err := s.store.Get(a.ID, prospectID)
	if err != nil {
		return Prompt, err
	}
	if cur != nil {
		switch cur.State {
		case gating.StateConfirmed:
			if err := s.Deliver(cur, now); err != nil {
				return Prompt, err
			}
			return Release, nil
		case gating.StateDelivered:
			return Release, nil
		case gating.StateAwaiting:
			if !cur.Expired(now) {
				return Prompt, nil
			}
			s.metrics.GateTransition(string(gating.StateAbandoned))
		}
	}

	sess := gating.Start(a.ID, a.OwnerID, prospectID, now, s.timeout)
	if err := s.store.Put(sess); err != nil {
		return Prompt, err
	}
	s.metrics.GateTransition(string(gating.StateAwaiting))
	return Prompt, nil
}

// Reply feeds a DM from the prospect to their latest awaiting session.
// It returns nil and gating.Closed when nothing awaits. Call under WithLock.
func (s *Service) Reply(ownerID, prospectID, text string, now time.Time) (*gating.Session, gating.Outcome, error) {
	sess, err := s.store.LatestAwaiting(ownerID, prospectID)
	if err != nil || sess == nil {
		return nil, gating.Closed, err
	}
	outcome := sess.Reply(text, now)
	switch outcome {
	case gating.Confirmed, gating.Expired:
		if err := s.store.Put(*sess); err != nil {
			return nil, outcome, err
		}
		s.metrics.GateTransition(string(sess.State))
	}
	return sess, outcome, nil
}

// Deliver records that the main message went out for a confirmed session.
func (s *Service) Deliver(sess *gating.Session, now time.Time) error {
	if err := sess.Deliver(now); err != nil {
		return err
	}
	if err := s.store.Put(*sess); err != nil {
		return err
	}
	s.metrics.GateTransition(string(gating.StateDelivered))
	return nil
}

// Abandon closes a session whose automation stopped being gated.
func (s *Service) Abandon(sess *gating.Session, now time.Time) error {
	if err := sess.Abandon(now); err != nil {
		return err
	}
	if err := s.store.Put(*sess); err != nil {
		return err
	}
	s.metrics.GateTransition(string(gating.StateAbandoned))
	return nil
}

// AbandonForAutomation closes the open sessions of an automation inside tx.
func (s *Service) AbandonForAutomation(tx *gorm.DB, automationID string, now time.Time) error {
	n, err := s.store.AbandonForAutomation(tx, automationID, now)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("abandoned gate sessions", zap.String("automation_id", automationID), zap.Int64("count", n))
	}
	return nil
}

// Sweep abandons every awaiting session past its deadline.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.AbandonExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.GateTransitions(string(gating.StateAbandoned), n)
		s.logger.Info("swept expired gate sessions", zap.Int64("count", n))
	}
	return n, nil
}
