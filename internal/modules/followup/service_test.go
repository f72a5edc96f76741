package followup

import (
	"errors"
	"testing"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/database/dbtest"
	"github.com/replyflow/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentColumns(t *testing.T) {
	dm, comment, general := Parent{AutomationID: "a", Channel: automation.ChannelDM, Scope: automation.ScopeGeneral}.columns()
	assert.NotNil(t, dm)
	assert.Nil(t, comment)
	assert.Nil(t, general)

	dm, comment, general = Parent{AutomationID: "a", Channel: automation.ChannelComment, Scope: automation.ScopeSpecific}.columns()
	assert.Nil(t, dm)
	assert.NotNil(t, comment)
	assert.Nil(t, general)

	dm, comment, general = Parent{AutomationID: "a", Channel: automation.ChannelComment, Scope: automation.ScopeGeneral}.columns()
	assert.Nil(t, dm)
	assert.Nil(t, comment)
	assert.Equal(t, "a", *general)
}

func TestSaveReplacesSequence(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	parent := Parent{AutomationID: "a1", Channel: automation.ChannelDM}

	_, err := svc.Save(parent, []followup.Step{
		{SequenceOrder: 1, DelayHours: 2, Message: "uno", Active: true},
		{SequenceOrder: 2, DelayHours: 5, Message: "dos", Active: true},
	})
	require.NoError(t, err)

	saved, err := svc.Save(parent, []followup.Step{
		{SequenceOrder: 1, DelayHours: 1, Message: "nuevo", Active: true},
		{SequenceOrder: 2, DelayHours: 3, Message: "", Active: true},
		{SequenceOrder: 3, DelayHours: 3, Message: "apagado", Active: false},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	got, err := svc.List("a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nuevo", got[0].Message)
	assert.Equal(t, 1, got[0].SequenceOrder)

	var count int64
	require.NoError(t, db.Model(&models.FollowUpStepModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveRejectsInvalidSequence(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	parent := Parent{AutomationID: "a1", Channel: automation.ChannelDM}
	_, err := svc.Save(parent, []followup.Step{{SequenceOrder: 1, DelayHours: 2, Message: "uno", Active: true}})
	require.NoError(t, err)

	_, err = svc.Save(parent, []followup.Step{{SequenceOrder: 1, DelayHours: 24, Message: "tarde", Active: true}})
	var seqErr *followup.SequenceError
	require.True(t, errors.As(err, &seqErr))

	// The previous sequence survives a rejected save.
	got, err := svc.List("a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "uno", got[0].Message)
}

func TestSaveRejectsOutOfOrderSteps(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	parent := Parent{AutomationID: "a1", Channel: automation.ChannelDM}

	_, err := svc.Save(parent, []followup.Step{
		{SequenceOrder: 1, DelayHours: 1, Message: "uno", Active: true},
		{SequenceOrder: 3, DelayHours: 1, Message: "tres", Active: true},
	})
	var seqErr *followup.SequenceError
	require.True(t, errors.As(err, &seqErr), "got %v", err)

	_, err = svc.Save(parent, []followup.Step{
		{SequenceOrder: 2, DelayHours: 1, Message: "B-second", Active: true},
		{SequenceOrder: 1, DelayHours: 1, Message: "A-first", Active: true},
	})
	require.True(t, errors.As(err, &seqErr), "got %v", err)

	got, err := svc.List("a1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReparentAndListMany(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	general := Parent{AutomationID: "a1", Channel: automation.ChannelComment, Scope: automation.ScopeGeneral}
	_, err := svc.Save(general, []followup.Step{{SequenceOrder: 1, DelayHours: 2, Message: "uno", Active: true}})
	require.NoError(t, err)
	_, err = svc.Save(Parent{AutomationID: "a2", Channel: automation.ChannelDM}, []followup.Step{{SequenceOrder: 1, DelayHours: 4, Message: "dm", Active: true}})
	require.NoError(t, err)

	specific := general
	specific.Scope = automation.ScopeSpecific
	require.NoError(t, svc.Reparent(db, specific))

	var row models.FollowUpStepModel
	require.NoError(t, db.Where("comment_automation_id = ?", "a1").First(&row).Error)
	assert.Nil(t, row.GeneralAutomationID)

	many, err := svc.ListMany([]string{"a1", "a2"})
	require.NoError(t, err)
	assert.Len(t, many["a1"], 1)
	assert.Equal(t, "dm", many["a2"][0].Message)
}
