package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studentslife/pkg/config"
	"studentslife/pkg/db"
	"studentslife/pkg/logger"
	"studentslife/services/event"
	"studentslife/services/loyalty"
	"studentslife/services/redemption"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(migrate),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = app.Stop(ctx)
}

func migrate(db *gorm.DB) error {
	models := []any{
		&event.Event{},
		&redemption.RedemptionCode{},
		&loyalty.LoyaltyCard{},
		&loyalty.ClientStamp{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return err
	}

	zap.L().Info("schema migrated", zap.Int("tables", len(models)))
	return nil
}
