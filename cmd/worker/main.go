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
	"studentslife/pkg/logger"
	"studentslife/pkg/otelcol"
	"studentslife/pkg/task"
	"studentslife/services/loyalty"
)

// worker drains the loyalty queue filled by the API when LOYALTY_ASYNC is on.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(db.Otel),
		gen.Module,
		featureflags.Module,
		otelcol.Module,
		task.Server,
		loyalty.Module,
		loyalty.TaskModule,
		fxLogger,
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
