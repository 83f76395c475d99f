// Package migration creates the schema on startup so the service is usable
// out of the box on a fresh database, local or self-hosted.
package migration

import (
	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	"github.com/simroster/simroster/internal/settings"
	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	workflowdomain "github.com/simroster/simroster/internal/workflow/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledgerdomain.Entry{},
		&tariffdomain.Tariff{},
		&rosterdomain.Subscription{},
		&auditdomain.Event{},
		&settings.Setting{},
		&workflowdomain.Session{},
	)
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)
