package donation

import (
	"github.com/xim/effekt-backend/internal/donation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("donation.service",
	fx.Provide(service.NewService),
)
