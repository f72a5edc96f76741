package config

import (
	"maps"
	"strings"
)

// withDefaults trims every field and fills the blanks a DSN cannot do without.
func (c DatabaseRuntimeConfig) withDefaults() DatabaseRuntimeConfig {
	for _, f := range []*string{&c.DSN, &c.Host, &c.User, &c.Password, &c.Name, &c.Charset, &c.Loc} {
		*f = strings.TrimSpace(*f)
	}
	c.Host = orDefault(c.Host, defaultDBHost)
	c.User = orDefault(c.User, defaultDBUser)
	c.Name = orDefault(c.Name, defaultDBName)
	c.Charset = orDefault(c.Charset, defaultDBCharset)
	c.Loc = orDefault(c.Loc, defaultDBLoc)
	if c.Port == 0 {
		c.Port = defaultDBPort
	}
	c.Params = maps.Clone(c.Params)
	return c
}

// withDefaults trims every field. Host parts only default when no URL is set.
func (c RedisRuntimeConfig) withDefaults() RedisRuntimeConfig {
	c.URL = redisURL(c.URL)
	c.Host = strings.TrimSpace(c.Host)
	c.Username = strings.TrimSpace(c.Username)
	c.Password = strings.TrimSpace(c.Password)
	if c.URL == "" {
		c.Host = orDefault(c.Host, defaultRedisHost)
	}
	if c.Port == 0 {
		c.Port = defaultRedisPort
	}
	return c
}

// redisURL accepts "host:port/db" shorthand and adds the redis scheme.
func redisURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		return raw
	}
	return "redis://" + raw
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
