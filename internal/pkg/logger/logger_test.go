package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Level: "debug", Dir: dir})
	require.NoError(t, err)

	log.Debug("hello", zap.String("event_id", "ev1"))
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"event_id":"ev1"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
