package httphelper

import (
	"log/slog"

	"github.com/Depado/ginprom"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"github.com/RoModerate/romoderate/pkg/log"
)

type RouterOpts struct {
	Mode              string
	HTTPLogEnabled    bool
	LogLevel          log.Level
	SentryDSN         string
	Version           string
	PProfEnabled      bool
	PrometheusEnabled bool
	HTTPCORSEnabled   bool
	CORSOrigins       []string
}

// CreateRouter constructs a new router using gin.Engine with the provided RouterOpts.
func CreateRouter(opts RouterOpts) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recoveryHandler())
	engine.Use(errorHandler())

	if opts.HTTPLogEnabled {
		engine.Use(sloggin.NewWithConfig(slog.Default(), sloggin.Config{
			DefaultLevel:     log.ToSlogLevel(opts.LogLevel),
			WithRequestID:    true,
			WithSpanID:       false,
			WithTraceID:      false,
			Filters:          []sloggin.Filter{sloggin.IgnorePath("/metrics", "/healthz")},
			ClientErrorLevel: slog.LevelWarn,
			ServerErrorLevel: slog.LevelError,
		}))
	}

	if opts.SentryDSN != "" {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	if opts.PProfEnabled {
		pprof.Register(engine)
	}

	if opts.HTTPCORSEnabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = opts.CORSOrigins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		engine.Use(cors.New(corsConfig))
	}

	if opts.PrometheusEnabled {
		prom := ginprom.New(ginprom.Engine(engine), ginprom.Path("/metrics"))
		engine.Use(prom.Instrument())
	}

	return engine
}
