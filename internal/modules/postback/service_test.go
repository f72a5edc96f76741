package postback

import (
	"context"
	"testing"

	"github.com/replyflow/core/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAndLookup(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	require.NoError(t, svc.Replace(db, "u1", "a1", "GET_INFO", "Aquí tienes la info"))
	resp, found, err := svc.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Aquí tienes la info", resp)

	// Saving again replaces rather than duplicating.
	require.NoError(t, svc.Replace(db, "u1", "a1", "GET_INFO", "Nueva info"))
	resp, _, err = svc.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.Equal(t, "Nueva info", resp)

	rows, err := svc.List("u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, found, err = svc.Lookup(ctx, "u2", "GET_INFO")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReplaceChangedKeyDropsOld(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	require.NoError(t, svc.Replace(db, "u1", "a1", "OLD", "x"))
	require.NoError(t, svc.Replace(db, "u1", "a1", "NEW", "y"))

	_, found, err := svc.Lookup(ctx, "u1", "OLD")
	require.NoError(t, err)
	assert.False(t, found)

	// An empty key only clears.
	require.NoError(t, svc.Replace(db, "u1", "a1", "", ""))
	_, found, err = svc.Lookup(ctx, "u1", "NEW")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReplaceLeavesOtherAutomationsKey(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	require.NoError(t, svc.Replace(db, "u1", "a1", "GET_INFO", "de a1"))
	err := svc.Replace(db, "u1", "a2", "GET_INFO", "de a2")
	assert.ErrorIs(t, err, ErrKeyTaken)

	resp, found, err := svc.Lookup(ctx, "u1", "GET_INFO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "de a1", resp)

	got, err := svc.ResponsesFor([]string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "de a1"}, got)

	// Another owner may use the same key.
	require.NoError(t, svc.Replace(db, "u2", "a3", "GET_INFO", "de a3"))
}

func TestDeletedActionIsUnresolved(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	require.NoError(t, svc.Replace(db, "u1", "a1", "GET_INFO", "info"))
	require.NoError(t, svc.DeleteByAutomation(db, "a1"))

	_, found, err := svc.Lookup(context.Background(), "u1", "GET_INFO")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResponsesFor(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	require.NoError(t, svc.Replace(db, "u1", "a1", "K1", "r1"))
	require.NoError(t, svc.Replace(db, "u1", "a2", "K2", "r2"))

	got, err := svc.ResponsesFor([]string{"a1", "a2", "a3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "r1", "a2": "r2"}, got)
}
