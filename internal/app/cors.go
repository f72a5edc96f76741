package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/replyflow/core/internal/config"
)

// originPattern is one allowed_origins entry. Host may start with "*." to
// accept any subdomain or end with ":*" to accept any port. Scheme is only
// checked when the entry names one.
type originPattern struct {
	scheme string
	host   string
}

func parseOriginPattern(raw string) originPattern {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		return originPattern{scheme: scheme, host: strings.TrimSuffix(rest, "/")}
	}
	return originPattern{host: strings.TrimSuffix(raw, "/")}
}

func (p originPattern) allows(origin string) bool {
	u, err := url.Parse(strings.ToLower(origin))
	if err != nil || u.Host == "" {
		return false
	}
	if p.scheme != "" && p.scheme != u.Scheme {
		return false
	}
	return matchOriginPattern(p.host, u.Host)
}

func matchOriginPattern(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:]) && len(host) > len(pattern)-1
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}

// corsConfig allows every origin in development or when no origins are
// configured; otherwise only allowed_origins.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if cfg.IsDev() || len(cfg.AllowedOrigins) == 0 {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}

	patterns := make([]originPattern, 0, len(cfg.AllowedOrigins))
	for _, raw := range cfg.AllowedOrigins {
		patterns = append(patterns, parseOriginPattern(raw))
	}
	c.AllowOriginFunc = func(origin string) bool {
		for _, p := range patterns {
			if p.allows(origin) {
				return true
			}
		}
		return false
	}
	return c
}
