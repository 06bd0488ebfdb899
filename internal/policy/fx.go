package policy

import (
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/policy/repository"
	"github.com/gridbill/gridbill/internal/policy/service"
)

var Module = fx.Module("policy",
	fx.Provide(
		repository.NewRepository,
		service.NewResolver,
	),
)
