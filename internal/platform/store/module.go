package store

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newStore(db *gorm.DB, log *zap.SugaredLogger) Store {
	return NewGormStore(db, log)
}

// Module exposes the postgres-backed Store via Fx.
var Module = fx.Options(
	fx.Provide(newStore),
)
