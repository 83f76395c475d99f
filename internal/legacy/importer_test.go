package legacy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	auditservice "github.com/simroster/simroster/internal/audit/service"
	"github.com/simroster/simroster/internal/clock"
	"github.com/simroster/simroster/internal/config"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	ledgerservice "github.com/simroster/simroster/internal/ledger/service"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	rosterrepository "github.com/simroster/simroster/internal/roster/repository"
	rosterservice "github.com/simroster/simroster/internal/roster/service"
	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	tariffservice "github.com/simroster/simroster/internal/tariff/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const legacyJSON = `{
  "wallet": 150.50,
  "tariffs": {"Основной": 57.75},
  "users": {
    "+971 50-123-4567": {
      "name": "Ahmed",
      "connection_datetime": "01.01.2024 10:00",
      "expiry_datetime": "31.01.2024 10:00",
      "tariff_name": "Основной",
      "tariff_cost": 57.75
    },
    "+971502222222": {
      "name": "Omar"
    }
  }
}`

type fixture struct {
	importer  *Importer
	ledgerSvc ledgerdomain.Service
	tariffSvc tariffdomain.Service
	rosterSvc rosterdomain.Service
	db        *gorm.DB
}

func newFixture(t *testing.T, legacyFile string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Entry{},
		&tariffdomain.Tariff{},
		&rosterdomain.Subscription{},
		&auditdomain.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: logger, GenID: node})
	tariffSvc := tariffservice.NewService(tariffservice.Params{DB: db, Log: logger})
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: logger, GenID: node})
	rosterSvc := rosterservice.NewService(rosterservice.Params{
		DB:        db,
		Log:       logger,
		Repo:      rosterrepository.Provide(),
		LedgerSvc: ledgerSvc,
		AuditSvc:  auditSvc,
	})

	imp := New(Params{
		DB:        db,
		Log:       logger,
		Cfg:       config.Config{AppName: "simroster-test", LegacyFile: legacyFile},
		Holder:    config.NewStaticNotifyConfigHolder(config.NotifyConfig{Timezone: "UTC", Hour: 9, Currency: "AED"}),
		Clock:     clock.NewFakeClock(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)),
		LedgerSvc: ledgerSvc,
		TariffSvc: tariffSvc,
		RosterSvc: rosterSvc,
		AuditSvc:  auditSvc,
	})
	return &fixture{importer: imp, ledgerSvc: ledgerSvc, tariffSvc: tariffSvc, rosterSvc: rosterSvc, db: db}
}

func writeLegacyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim_users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportPopulatesEverything(t *testing.T) {
	f := newFixture(t, writeLegacyFile(t, legacyJSON))
	ctx := context.Background()

	require.NoError(t, f.importer.Run(ctx))

	// Wallet arrives as a migration topup, not a regular one.
	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15050), balance)

	var entry ledgerdomain.Entry
	require.NoError(t, f.db.First(&entry).Error)
	assert.Equal(t, ledgerdomain.EntryKindMigrationTopup, entry.Kind)

	tariff, err := f.tariffSvc.Get(ctx, "Основной")
	require.NoError(t, err)
	assert.Equal(t, int64(5775), tariff.CostMinor)
	assert.Equal(t, 30, tariff.DurationDays)

	// Phones are normalized on the way in; dates come from the file.
	sub, err := f.rosterSvc.Get(ctx, "+971501234567")
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", sub.Name)
	assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC).Unix(), sub.ExpiresAt.Unix())
	assert.Equal(t, int64(5775), sub.TariffCostMinor)

	// A row without dates falls back to the import instant.
	omar, err := f.rosterSvc.Get(ctx, "+971502222222")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC).Unix(), omar.ConnectedAt.Unix())
}

func TestImportSkipsWhenRosterNotEmpty(t *testing.T) {
	f := newFixture(t, writeLegacyFile(t, legacyJSON))
	ctx := context.Background()

	_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971509999999",
		Name:               "Existing",
		ConnectedAt:        time.Now().UTC(),
		TariffDurationDays: 30,
		ActorID:            1,
	})
	require.NoError(t, err)

	require.NoError(t, f.importer.Run(ctx))

	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	count, err := f.rosterSvc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestImportMissingFileIsNoop(t *testing.T) {
	f := newFixture(t, filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, f.importer.Run(context.Background()))

	count, err := f.rosterSvc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestImportMalformedFileIsNoop(t *testing.T) {
	f := newFixture(t, writeLegacyFile(t, "{not json"))
	require.NoError(t, f.importer.Run(context.Background()))

	count, err := f.rosterSvc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestParseBareRosterShape(t *testing.T) {
	file, err := Parse([]byte(`{"+971501234567": {"name": "Ahmed", "tariff_cost": 55}}`))
	require.NoError(t, err)
	assert.Len(t, file.Users, 1)
	assert.Equal(t, "Ahmed", file.Users["+971501234567"].Name)
	assert.Zero(t, file.Wallet)
	assert.Empty(t, file.Tariffs)
}
