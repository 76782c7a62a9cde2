package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/debtbook/internal/app/api/server"
	"github.com/fatflowers/debtbook/internal/app/service/idempotency"
	"github.com/fatflowers/debtbook/internal/app/service/ledger"
	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/reconciliation"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/platform/db"
	"github.com/fatflowers/debtbook/internal/platform/sms"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	sms.Module,
	server.Module,
	parser.Module,
	ledger.Module,
	idempotency.Module,
	payment_log.Module,
	unmatched.Module,
	reconciliation.Module,
)
