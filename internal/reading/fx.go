package reading

import (
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/reading/domain"
	"github.com/gridbill/gridbill/internal/reading/repository"
)

var Module = fx.Module("reading",
	fx.Provide(
		repository.New,
		func(r domain.Repository) domain.Source { return r },
	),
)
