package notification_parser

import (
	"go.uber.org/fx"

	"github.com/fatflowers/debtbook/pkg/config"
)

func NewFromConfig(cfg *config.Config) *Parser {
	return New(
		WithLocation(cfg.Reconcile.Location()),
		WithRules(DefaultRules(cfg.Reconcile.CurrencyLabel)),
	)
}

// Module exposes the parser via Fx.
var Module = fx.Options(
	fx.Provide(NewFromConfig),
)
