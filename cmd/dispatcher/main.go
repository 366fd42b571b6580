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
	"smallbiznis-referral/pkg/logger"
	"smallbiznis-referral/pkg/mailer"
	"smallbiznis-referral/pkg/otelcol"
	"smallbiznis-referral/pkg/profiling"
	"smallbiznis-referral/pkg/redis"
	"smallbiznis-referral/pkg/security"
	"smallbiznis-referral/pkg/sequence"
	"smallbiznis-referral/pkg/server"
	"smallbiznis-referral/pkg/sms"
	"smallbiznis-referral/pkg/task"
	"smallbiznis-referral/services/ambassador"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/campaign"
	"smallbiznis-referral/services/event"
)

// The dispatcher runs scheduled campaign batches. It enqueues a dispatch task
// every CAMPAIGN_DISPATCH.INTERVAL and consumes it with the asynq worker, so
// several replicas share one cadence. The same worker sends queued ambassador
// access emails.
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
		mailer.Module,
		sms.Module,
		featureflags.Module,

		event.Module,
		fx.Provide(campaign.NewSenders, campaign.NewRunner, attribution.NewCodec),

		task.Client,
		task.Server,
		campaign.Worker,
		ambassador.Worker,
		campaign.Schedule,

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
