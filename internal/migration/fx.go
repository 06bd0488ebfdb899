package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	accountdomain "github.com/gridbill/gridbill/internal/account/domain"
	billdomain "github.com/gridbill/gridbill/internal/bill/domain"
	meterdomain "github.com/gridbill/gridbill/internal/meter/domain"
	notifdomain "github.com/gridbill/gridbill/internal/notification/domain"
	policydomain "github.com/gridbill/gridbill/internal/policy/domain"
	readingdomain "github.com/gridbill/gridbill/internal/reading/domain"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// The versioned SQL path is postgres-only; other dialects (sqlite
		// for local runs, mysql) fall back to schema sync from the models.
		if !strings.EqualFold(conn.Dialector.Name(), "postgres") {
			return conn.AutoMigrate(
				&regiondomain.Region{},
				&accountdomain.Account{},
				&meterdomain.Meter{},
				&readingdomain.MeterReading{},
				&policydomain.PricePolicy{},
				&policydomain.LadderRule{},
				&policydomain.TimeShareRule{},
				&billdomain.Bill{},
				&billdomain.BillDetail{},
				&notifdomain.Notification{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
