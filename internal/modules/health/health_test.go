package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/database/dbtest"
	"github.com/replyflow/core/internal/pkg/cron"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newRouter(t *testing.T, cache Pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sched := cron.New(zap.NewNop())
	sched.Register(cron.Job{Name: "noop", Interval: time.Hour, Fn: func(context.Context) error { return nil }})
	sched.Register(cron.Job{Name: "broken", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("boom") }})

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), dbtest.New(t), cache, sched, func(c *gin.Context) { c.Next() })
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestPingAndHealth(t *testing.T) {
	r := newRouter(t, stubPinger{})
	w := get(r, http.MethodGet, "/api/v1/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = get(r, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	r = newRouter(t, stubPinger{err: errors.New("down")})
	w = get(r, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":false`)
}

func TestCronAdmin(t *testing.T) {
	r := newRouter(t, stubPinger{})
	w := get(r, http.MethodGet, "/api/v1/health/cron")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"noop"`)

	assert.Equal(t, http.StatusOK, get(r, http.MethodPost, "/api/v1/health/cron/run/noop").Code)
	assert.Equal(t, http.StatusInternalServerError, get(r, http.MethodPost, "/api/v1/health/cron/run/broken").Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodPost, "/api/v1/health/cron/run/missing").Code)
}
