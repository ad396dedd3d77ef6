package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig scopes the response headers.
type SecurityConfig struct {
	// HSTS is sent only when the server terminates TLS itself.
	HSTS bool
	// NoStorePrefixes are the path prefixes whose responses carry incident
	// data (record lists, summaries, CSV exports). They are never cached.
	NoStorePrefixes []string
}

// SecurityHeaders sets the baseline headers on every response and the
// no-store cache policy on incident data responses. Headers are written
// before the handler runs so error responses carry them too.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if carriesIncidentData(c.Request().URL.Path, cfg.NoStorePrefixes) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
			}
			return next(c)
		}
	}
}

func carriesIncidentData(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
