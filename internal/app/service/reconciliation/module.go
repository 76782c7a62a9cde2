package reconciliation

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/app/service/idempotency"
	"github.com/fatflowers/debtbook/internal/app/service/ledger"
	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/platform/sms"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
)

func provide(cfg *config.Config, p *parser.Parser, r *ledger.Resolver, g *idempotency.Guard, st store.Store,
	sender sms.Sender, pl *payment_log.Service, um *unmatched.Service, log *zap.SugaredLogger) *Service {
	return New(Params{
		Config: cfg, Parser: p, Resolver: r, Guard: g, Store: st,
		Sender: sender, PaymentLog: pl, Unmatched: um, Logger: log,
	})
}

// Module exposes the reconciliation pipeline via Fx.
var Module = fx.Options(
	fx.Provide(provide),
)
