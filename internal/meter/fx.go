package meter

import (
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/meter/repository"
)

var Module = fx.Module("meter",
	fx.Provide(repository.New),
)
