package parsing

import (
	"github.com/xim/effekt-backend/internal/parsing/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("parsing.repository",
	fx.Provide(repository.Provide),
)
