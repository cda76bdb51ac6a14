package distribution

import (
	"github.com/xim/effekt-backend/internal/distribution/repository"
	"github.com/xim/effekt-backend/internal/distribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("distribution.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
