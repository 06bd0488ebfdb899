package bill

import (
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/bill/repository"
	"github.com/gridbill/gridbill/internal/bill/service"
)

var Module = fx.Module("bill",
	fx.Provide(
		repository.NewRepository,
		service.NewLedger,
	),
)
