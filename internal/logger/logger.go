package logger

import (
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
)

// Setup configures the global zerolog logger. Dev environments get console
// output; everything else logs JSON.
func Setup(env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "" || env == "dev" || env == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// log.Ctx falls back to the global logger for contexts without one.
	zerolog.DefaultContextLogger = &log.Logger
}

// Requests logs one line per request and attaches a request-scoped logger to
// the request context.
func Requests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		evt := reqLog.Info()
		if status >= 500 {
			evt = reqLog.Error()
		} else if status >= 400 {
			evt = reqLog.Warn()
		}
		if claims, ok := auth.ClaimsFrom(c); ok {
			evt = evt.Str("subject", claims.Subject)
		}
		evt.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
