package app

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/replyflow/core/internal/config"
	jwtpkg "github.com/replyflow/core/internal/pkg/jwt"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X ...app.version=...".
var version = "dev"

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) {
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	if strings.TrimSpace(cfg.IngestToken) == "" {
		logger.Warn("ingest_token is empty, event ingestion is unauthenticated")
	}
}

// sharedRand picks from the process-wide generator, which is safe for
// concurrent requests.
type sharedRand struct{}

func (sharedRand) IntN(n int) int { return rand.IntN(n) }

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
