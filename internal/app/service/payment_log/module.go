package payment_log

import "go.uber.org/fx"

// Module exposes the payment audit trail via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
