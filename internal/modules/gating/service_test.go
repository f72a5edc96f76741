package gating

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/gating"
	"github.com/replyflow/core/internal/database/dbtest"
	pkgredis "github.com/replyflow/core/internal/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	locker := pkgredis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	store := NewStore(dbtest.New(t))
	return NewService(store, locker, time.Hour, nil, nil), store
}

func gated() automation.Automation {
	return automation.Automation{
		ID:              "a1",
		OwnerID:         "u1",
		Channel:         automation.ChannelComment,
		Scope:           automation.ScopeGeneral,
		Message:         "Aquí está el enlace",
		ReplyPool:       []string{"Te escribimos por DM"},
		Active:          true,
		RequireFollower: true,
	}
}

func TestOpenConfirmDeliver(t *testing.T) {
	svc, store := newService(t)

	d, err := svc.Open(gated(), "p1", t0)
	require.NoError(t, err)
	assert.Equal(t, Prompt, d)

	sess, err := store.Get("a1", "p1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, gating.StateAwaiting, sess.State)
	assert.True(t, sess.ExpiresAt.Equal(t0.Add(time.Hour)))

	// "tal vez" keeps the session awaiting.
	_, outcome, err := svc.Reply("u1", "p1", "tal vez", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, gating.Ignored, outcome)

	got, outcome, err := svc.Reply("u1", "p1", "Sí", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, gating.Confirmed, outcome)
	require.NoError(t, svc.Deliver(got, t0.Add(2*time.Minute)))

	sess, err = store.Get("a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateDelivered, sess.State)

	// Later triggers skip the prompt.
	d, err = svc.Open(gated(), "p1", t0.Add(time.Hour*3))
	require.NoError(t, err)
	assert.Equal(t, Release, d)
}

func TestOpenDeliversLeftoverConfirmation(t *testing.T) {
	svc, store := newService(t)
	_, err := svc.Open(gated(), "p1", t0)
	require.NoError(t, err)

	// Confirmed, but the main message was never recorded as delivered.
	_, outcome, err := svc.Reply("u1", "p1", "si", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, gating.Confirmed, outcome)

	d, err := svc.Open(gated(), "p1", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Release, d)

	sess, err := store.Get("a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateDelivered, sess.State)

	d, err = svc.Open(gated(), "p1", t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Release, d)
}

func TestReplyAfterDeadlineAbandons(t *testing.T) {
	svc, store := newService(t)
	_, err := svc.Open(gated(), "p1", t0)
	require.NoError(t, err)

	_, outcome, err := svc.Reply("u1", "p1", "si", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, gating.Expired, outcome)

	sess, err := store.Get("a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateAbandoned, sess.State)

	// A new trigger starts over.
	d, err := svc.Open(gated(), "p1", t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Prompt, d)
	sess, err = store.Get("a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateAwaiting, sess.State)
}

func TestReplyWithoutSession(t *testing.T) {
	svc, _ := newService(t)
	sess, outcome, err := svc.Reply("u1", "p1", "si", t0)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, gating.Closed, outcome)
}

func TestAbandonForAutomationAndSweep(t *testing.T) {
	svc, store := newService(t)
	_, err := svc.Open(gated(), "p1", t0)
	require.NoError(t, err)
	other := gated()
	other.ID = "a2"
	_, err = svc.Open(other, "p2", t0)
	require.NoError(t, err)

	require.NoError(t, svc.AbandonForAutomation(store.db, "a1", t0.Add(time.Minute)))
	sess, err := store.Get("a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateAbandoned, sess.State)

	// Abandoned sessions are never promoted.
	_, outcome, err := svc.Reply("u1", "p1", "si", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, gating.Confirmed, outcome)

	n, err := svc.Sweep(context.Background(), t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.Sweep(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWithLockSerialises(t *testing.T) {
	svc, _ := newService(t)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.WithLock(context.Background(), "u1", "p1", func() error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestWithLockPropagatesError(t *testing.T) {
	svc, _ := newService(t)
	boom := errors.New("boom")
	assert.ErrorIs(t, svc.WithLock(context.Background(), "u1", "p1", func() error { return boom }), boom)
	// The lock was released.
	assert.NoError(t, svc.WithLock(context.Background(), "u1", "p1", func() error { return nil }))
}
