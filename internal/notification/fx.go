package notification

import (
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/notification/service"
)

var Module = fx.Module("notification",
	fx.Provide(service.New),
)
