package region

import (
	"github.com/gridbill/gridbill/internal/region/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("region",
	fx.Provide(repository.New),
)
