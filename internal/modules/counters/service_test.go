package counters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/database/dbtest"
	"github.com/replyflow/core/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementIsIdempotentPerKey(t *testing.T) {
	svc := NewService(dbtest.New(t))
	ctx := context.Background()

	v, applied, err := svc.Increment(ctx, "u1", MessagesSent, "ev1", 2)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), v)

	v, applied, err = svc.Increment(ctx, "u1", MessagesSent, "ev1", 2)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(2), v)

	v, applied, err = svc.Increment(ctx, "u1", MessagesSent, "ev2", 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(3), v)

	// Without a key every call counts.
	_, _, err = svc.Increment(ctx, "u1", ContactedProspects, "", 1)
	require.NoError(t, err)
	v, _, err = svc.Increment(ctx, "u1", ContactedProspects, "", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	all, err := svc.All("u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{MessagesSent: 3, ContactedProspects: 2}, all)

	other, err := svc.All("u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), other[MessagesSent])
}

func TestIncrementValidates(t *testing.T) {
	svc := NewService(dbtest.New(t))
	_, _, err := svc.Increment(context.Background(), "u1", "Bad Name", "", 1)
	assert.ErrorIs(t, err, errInvalidName)
	_, _, err = svc.Increment(context.Background(), "u1", MessagesSent, "", -1)
	assert.ErrorIs(t, err, errInvalidDelta)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
		c.Next()
	}
	NewHandler(NewService(dbtest.New(t))).RegisterRoutes(r.Group("/api/v1"), auth)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/counters/messages_sent/increment", strings.NewReader(`{"key":"k1"}`)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"value":1`)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/counters", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages_sent":1,"contacted_prospects":0}`, w.Body.String())
}
