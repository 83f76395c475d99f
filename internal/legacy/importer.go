// Package legacy performs the one-time import of the pre-database JSON file:
// wallet balance, tariff catalog, and roster rows. It runs only against an
// empty roster and never charges the ledger for imported subscriptions.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	"github.com/simroster/simroster/internal/clock"
	"github.com/simroster/simroster/internal/config"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	workflowdomain "github.com/simroster/simroster/internal/workflow/domain"
	"github.com/simroster/simroster/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultDurationDays is assumed for every imported row; the legacy file
// predates per-tariff durations.
const defaultDurationDays = 30

// File is the legacy JSON shape: a roster keyed by phone plus an optional
// wallet balance and tariff catalog in major units.
type File struct {
	Users   map[string]User    `json:"users"`
	Wallet  float64            `json:"wallet"`
	Tariffs map[string]float64 `json:"tariffs"`
}

type User struct {
	Name               string  `json:"name"`
	ConnectionDatetime string  `json:"connection_datetime"`
	ExpiryDatetime     string  `json:"expiry_datetime"`
	TariffName         *string `json:"tariff_name"`
	TariffCost         float64 `json:"tariff_cost"`
}

// Parse decodes the legacy file. Older exports had no envelope and were the
// bare phone-to-user map; those decode with a zero wallet and no tariffs.
func Parse(raw []byte) (File, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return File{}, err
	}
	if _, ok := envelope["users"]; ok {
		var f File
		if err := json.Unmarshal(raw, &f); err != nil {
			return File{}, err
		}
		return f, nil
	}
	var users map[string]User
	if err := json.Unmarshal(raw, &users); err != nil {
		return File{}, err
	}
	return File{Users: users}, nil
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Holder    *config.NotifyConfigHolder
	Clock     clock.Clock
	LedgerSvc ledgerdomain.Service
	TariffSvc tariffdomain.Service
	RosterSvc rosterdomain.Service
	AuditSvc  auditdomain.Service
}

type Importer struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	holder    *config.NotifyConfigHolder
	clock     clock.Clock
	ledgerSvc ledgerdomain.Service
	tariffSvc tariffdomain.Service
	rosterSvc rosterdomain.Service
	auditSvc  auditdomain.Service
}

func New(p Params) *Importer {
	return &Importer{
		db:        p.DB,
		log:       p.Log.Named("legacy.importer"),
		cfg:       p.Cfg,
		holder:    p.Holder,
		clock:     p.Clock,
		ledgerSvc: p.LedgerSvc,
		tariffSvc: p.TariffSvc,
		rosterSvc: p.RosterSvc,
		auditSvc:  p.AuditSvc,
	}
}

// Run imports the configured legacy file once. A missing file, a non-empty
// roster, or an unreadable file all make Run a no-op; only database failures
// are returned.
func (i *Importer) Run(ctx context.Context) error {
	path := i.cfg.LegacyFile
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		i.log.Warn("legacy file unreadable, skipping import", zap.String("path", path), zap.Error(err))
		return nil
	}

	count, err := i.rosterSvc.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		i.log.Info("roster not empty, skipping legacy import", zap.Int64("subscriptions", count))
		return nil
	}

	file, err := Parse(raw)
	if err != nil {
		i.log.Warn("legacy file malformed, skipping import", zap.String("path", path), zap.Error(err))
		return nil
	}

	loc := i.holder.Get().Location()
	now := i.clock.Now()
	actorID := i.cfg.ConsoleActorID

	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if file.Wallet > 0 {
			if _, err := i.ledgerSvc.RecordTx(ctx, tx, ledgerdomain.RecordRequest{
				AmountMinor: money.RoundMajorToMinor(file.Wallet),
				Kind:        ledgerdomain.EntryKindMigrationTopup,
				Description: "legacy wallet",
				ActorID:     actorID,
			}); err != nil {
				return err
			}
		}

		for name, cost := range file.Tariffs {
			if _, err := i.tariffSvc.UpsertTx(ctx, tx, name, money.RoundMajorToMinor(cost), defaultDurationDays); err != nil {
				i.log.Warn("skipping invalid legacy tariff", zap.String("name", name), zap.Error(err))
			}
		}

		for phone, user := range file.Users {
			sub := i.subscription(phone, user, now, loc)
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		}

		detail := fmt.Sprintf("users=%d tariffs=%d wallet=%s", len(file.Users), len(file.Tariffs), money.FormatMinor(money.RoundMajorToMinor(file.Wallet)))
		return i.auditSvc.LogTx(ctx, tx, auditdomain.ActionLegacyImport, nil, detail, actorID)
	})
	if err != nil {
		return err
	}

	i.log.Info("legacy data imported",
		zap.Int("users", len(file.Users)),
		zap.Int("tariffs", len(file.Tariffs)))
	return nil
}

// subscription maps one legacy row. Dates parse in the operating zone;
// anything missing or malformed falls back to the import instant.
func (i *Importer) subscription(phone string, user User, now time.Time, loc *time.Location) rosterdomain.Subscription {
	name := user.Name
	if name == "" {
		name = "Unknown"
	}
	connectedAt := parseLegacyDate(user.ConnectionDatetime, now, loc)
	expiresAt := parseLegacyDate(user.ExpiryDatetime, now, loc)
	return rosterdomain.Subscription{
		Phone:              workflowdomain.NormalizePhone(phone),
		Name:               name,
		ConnectedAt:        connectedAt,
		ExpiresAt:          expiresAt,
		TariffName:         user.TariffName,
		TariffCostMinor:    money.RoundMajorToMinor(user.TariffCost),
		TariffDurationDays: defaultDurationDays,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func parseLegacyDate(raw string, fallback time.Time, loc *time.Location) time.Time {
	if raw == "" {
		return fallback
	}
	t, err := time.ParseInLocation(workflowdomain.DateFormat, raw, loc)
	if err != nil {
		return fallback
	}
	return t
}

var Module = fx.Module("legacy.importer",
	fx.Provide(New),
	fx.Invoke(func(i *Importer) error { return i.Run(context.Background()) }),
)
