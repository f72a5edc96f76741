package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/core/gating"
	"github.com/replyflow/core/internal/database/dbtest"
	"github.com/replyflow/core/internal/models"
	followupmod "github.com/replyflow/core/internal/modules/followup"
	"github.com/replyflow/core/internal/modules/flowgraph"
	gatingmod "github.com/replyflow/core/internal/modules/gating"
	"github.com/replyflow/core/internal/modules/postback"
	"github.com/replyflow/core/internal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	svc       *Service
	postbacks *postback.Service
	flows     *flowgraph.Service
	gates     *gatingmod.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	pb := postback.NewService(db)
	flows := flowgraph.NewService(db)
	store := gatingmod.NewStore(db)
	gates := gatingmod.NewService(store, nil, time.Hour, nil, nil)
	return fixture{
		db:        db,
		svc:       NewService(db, pb, followupmod.NewService(db), flows, gates, nil),
		postbacks: pb,
		flows:     flows,
		gates:     store,
	}
}

func postbackAutomation() automation.Automation {
	return automation.Automation{
		Channel:  automation.ChannelDM,
		Keywords: []string{" Info ", "precio"},
		Message:  "¿Quieres más información?",
		Active:   true,
		Button: &automation.Button{
			Type:     automation.ButtonPostback,
			Title:    "Sí, enviar",
			Payload:  "GET_INFO",
			Response: "Aquí está la info",
		},
	}
}

func TestSaveCreatesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.Save("u1", SaveInput{
		Automation: postbackAutomation(),
		FollowUps:  []followup.Step{{SequenceOrder: 1, DelayHours: 2, Message: "¿Lo viste?", Active: true}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, []string{"info", "precio"}, saved.Keywords)
	assert.Equal(t, "u1", saved.OwnerID)

	resp, found, err := f.postbacks.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Aquí está la info", resp)

	g, err := f.flows.Get("u1", "dm", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, flow.OriginLegacyForm, g.Metadata.Origin)
	assert.NotNil(t, g.FirstOfKind(flow.KindInstagramMessage))

	got, err := f.svc.GetByID("u1", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Button)
	assert.Equal(t, "Aquí está la info", got.Button.Response)

	steps, err := f.svc.FollowUps(saved.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	other, err := f.svc.GetByID("u2", saved.ID)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSaveRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	a := postbackAutomation()
	a.RequireFollower = true
	_, err := f.svc.Save("u1", SaveInput{Automation: a})
	var vErr *automation.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "button", vErr.Field)

	a = postbackAutomation()
	a.Keywords = []string{"info", "INFO"}
	_, err = f.svc.Save("u1", SaveInput{Automation: a})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "keywords", vErr.Field)

	var count int64
	require.NoError(t, f.db.Model(&models.AutomationModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSaveRejectsPayloadOfAnotherAutomation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Save("u1", SaveInput{Automation: postbackAutomation()})
	require.NoError(t, err)

	_, err = f.svc.Save("u1", SaveInput{Automation: postbackAutomation()})
	assert.ErrorIs(t, err, errPayloadInUse)

	// Another owner may reuse the key.
	_, err = f.svc.Save("u2", SaveInput{Automation: postbackAutomation()})
	assert.NoError(t, err)
}

func TestSaveKeepsActionHeldByAnotherAutomation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// An action stored by a concurrent save whose automation row is not visible yet.
	require.NoError(t, f.postbacks.Replace(f.db, "u1", "a-other", "GET_INFO", "de otra"))

	_, err := f.svc.Save("u1", SaveInput{Automation: postbackAutomation()})
	assert.ErrorIs(t, err, errPayloadInUse)

	resp, found, err := f.postbacks.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "de otra", resp)

	var count int64
	require.NoError(t, f.db.Model(&models.AutomationModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateReplacesPostbackAndKeepsFollowUps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saved, err := f.svc.Save("u1", SaveInput{
		Automation: postbackAutomation(),
		FollowUps:  []followup.Step{{SequenceOrder: 1, DelayHours: 2, Message: "uno", Active: true}},
	})
	require.NoError(t, err)

	edit := *saved
	edit.Button = &automation.Button{Type: automation.ButtonWebURL, Title: "Ver", URL: "https://example.com/p"}
	_, err = f.svc.Save("u1", SaveInput{Automation: edit})
	require.NoError(t, err)

	_, found, err := f.postbacks.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.False(t, found)

	steps, err := f.svc.FollowUps(saved.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	_, err = f.svc.Save("u1", SaveInput{Automation: automation.Automation{ID: "missing", Channel: "dm", Message: "x"}})
	assert.ErrorIs(t, err, errAutomationNotFound)
}

func TestTurningGatingOffAbandonsSessions(t *testing.T) {
	f := newFixture(t)
	a := automation.Automation{
		Channel:         automation.ChannelComment,
		Message:         "Aquí tienes",
		ReplyPool:       []string{"Revisa tu DM"},
		Active:          true,
		RequireFollower: true,
	}
	saved, err := f.svc.Save("u1", SaveInput{Automation: a})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.gates.Put(gating.Start(saved.ID, "u1", "p1", now, time.Hour)))

	edit := *saved
	edit.RequireFollower = false
	_, err = f.svc.Save("u1", SaveInput{Automation: edit})
	require.NoError(t, err)

	sess, err := f.gates.Get(saved.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, gating.StateAbandoned, sess.State)
}

func TestSetActiveAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saved, err := f.svc.Save("u1", SaveInput{Automation: postbackAutomation()})
	require.NoError(t, err)

	off, err := f.svc.SetActive("u1", saved.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)

	active, err := f.svc.ListActive(ctx, "u1", automation.ChannelDM)
	require.NoError(t, err)
	assert.Empty(t, active)

	g, err := f.flows.Get("u1", "dm", saved.ID)
	require.NoError(t, err)
	assert.False(t, g.FirstOfKind(flow.KindAutoresponder).Data.(flow.AutoresponderData).Active)

	require.NoError(t, f.svc.Delete("u1", saved.ID))
	assert.ErrorIs(t, f.svc.Delete("u1", saved.ID), errAutomationNotFound)

	_, found, err := f.postbacks.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.False(t, found)
	g, err = f.flows.Get("u1", "dm", saved.ID)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestListAndOwners(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Save("u1", SaveInput{Automation: postbackAutomation()})
	require.NoError(t, err)
	_, err = f.svc.Save("u1", SaveInput{Automation: automation.Automation{
		Channel: automation.ChannelComment, Message: "hola", ReplyPool: []string{"ok"}, Active: true,
	}})
	require.NoError(t, err)
	_, err = f.svc.Save("u2", SaveInput{Automation: automation.Automation{Channel: automation.ChannelDM, Message: "x", Active: true}})
	require.NoError(t, err)

	items, pag, err := f.svc.List("u1", "", pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), pag.Total)

	items, _, err = f.svc.List("u1", "comment", pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	owners, err := f.svc.Owners()
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, owners)
}
