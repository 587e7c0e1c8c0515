package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const corsMaxAge = 12 * time.Hour

// createCORSMiddleware returns nil when CORS is disabled or none of the
// configured origins is usable. Origins are a comma separated list of
// scheme://host[:port] values.
//
// Requests are scoped by the tenant header, never by cookies, so credentials
// are not allowed.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOrigins, logger)
	if len(origins) == 0 {
		logger.Warn("cors enabled without usable origins, middleware not installed")
		return nil
	}

	config := corsConfig(origins)
	if err := config.Validate(); err != nil {
		logger.Error("invalid cors configuration", slog.Any("error", err))
		return nil
	}

	logger.Info("cors enabled", slog.Any("origins", origins))
	return cors.New(config)
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Content-Type", TenantHeader, "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        corsMaxAge,
	}
}

// parseOrigins keeps the entries that are absolute http(s) origins without a
// path. Rejected entries are logged and skipped.
func parseOrigins(raw string, logger *slog.Logger) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin == "" {
			continue
		}

		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" {
			logger.Warn("ignoring invalid cors origin", slog.String("origin", origin))
			continue
		}
		origins = append(origins, u.Scheme+"://"+u.Host)
	}
	return origins
}
