package payment

import (
	"github.com/xim/effekt-backend/internal/payment/paypal"
	"github.com/xim/effekt-backend/internal/payment/vipps"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(vipps.NewClient),
	fx.Provide(paypal.NewClient),
)
