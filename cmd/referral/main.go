package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/db"
	"smallbiznis-referral/pkg/featureflags"
	"smallbiznis-referral/pkg/gen"
	"smallbiznis-referral/pkg/hashistack/secretmanager"
	"smallbiznis-referral/pkg/health"
	"smallbiznis-referral/pkg/httpapi"
	"smallbiznis-referral/pkg/logger"
	"smallbiznis-referral/pkg/mailer"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/minio"
	"smallbiznis-referral/pkg/otelcol"
	"smallbiznis-referral/pkg/profiling"
	"smallbiznis-referral/pkg/ratelimit"
	"smallbiznis-referral/pkg/redis"
	"smallbiznis-referral/pkg/security"
	"smallbiznis-referral/pkg/sequence"
	"smallbiznis-referral/pkg/server"
	"smallbiznis-referral/pkg/task"
	"smallbiznis-referral/pkg/sms"
	"smallbiznis-referral/services/ambassador"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/bootstrap"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/campaign"
	"smallbiznis-referral/services/dashboard"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		security.Module,
		ratelimit.Module,
		mailer.Module,
		task.Producer,
		sms.Module,
		minio.Client,
		featureflags.Module,
		middleware.AuthModule,
		health.Module,
		httpapi.Module,

		business.Module,
		event.Module,
		event.Routes,
		attribution.Module,
		attribution.Routes,
		referral.Module,
		referral.Routes,
		ambassador.Module,
		ambassador.Routes,
		campaign.Module,
		campaign.Routes,
		dashboard.Module,
		bootstrap.Module,

		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})
