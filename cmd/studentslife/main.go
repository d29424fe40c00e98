package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"studentslife/pkg/config"
	"studentslife/pkg/db"
	"studentslife/pkg/featureflags"
	"studentslife/pkg/gen"
	"studentslife/pkg/hashistack/secretmanager"
	"studentslife/pkg/hashistack/servicediscover"
	"studentslife/pkg/health"
	"studentslife/pkg/httpapi"
	"studentslife/pkg/logger"
	"studentslife/pkg/otelcol"
	"studentslife/pkg/profiling"
	"studentslife/pkg/redis"
	"studentslife/pkg/sequence"
	"studentslife/pkg/server"
	"studentslife/pkg/task"
	"studentslife/services/event"
	"studentslife/services/loyalty"
	"studentslife/services/redemption"
)

func main() {
	opts := []fx.Option{
		logger.Module,
		db.Module,
		fx.Invoke(db.Otel, db.Metric),
		redis.Module,
		sequence.Module,
		gen.Module,
		featureflags.Module,
		task.Client,
		otelcol.Module,
		profiling.Module,
		health.Module,
		httpapi.Module,
		event.Module,
		event.Routes,
		loyalty.Module,
		loyalty.Routes,
		redemption.Module,
		redemption.Routes,
		server.TLSModule,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
		fxLogger,
	}

	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		opts = append(opts, config.RemoteModule)
	} else {
		opts = append(opts, config.Module)
	}

	if _, ok := os.LookupEnv("VAULT_ADDR"); ok {
		opts = append(opts, secretmanager.Module)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
