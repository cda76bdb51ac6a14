package donor

import (
	"github.com/xim/effekt-backend/internal/donor/service"
	"go.uber.org/fx"
)

var Module = fx.Module("donor.service",
	fx.Provide(service.NewService),
)
