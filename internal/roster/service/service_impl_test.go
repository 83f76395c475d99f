package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	auditservice "github.com/simroster/simroster/internal/audit/service"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	ledgerservice "github.com/simroster/simroster/internal/ledger/service"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	"github.com/simroster/simroster/internal/roster/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	rosterSvc rosterdomain.Service
	ledgerSvc ledgerdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Entry{},
		&rosterdomain.Subscription{},
		&auditdomain.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: logger, GenID: node})
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: logger, GenID: node})
	rosterSvc := NewService(Params{
		DB:        db,
		Log:       logger,
		Repo:      repository.Provide(),
		LedgerSvc: ledgerSvc,
		AuditSvc:  auditSvc,
	})
	return fixture{db: db, rosterSvc: rosterSvc, ledgerSvc: ledgerSvc}
}

func (f fixture) topup(t *testing.T, amountMinor int64) {
	t.Helper()
	_, err := f.ledgerSvc.Record(context.Background(), ledgerdomain.RecordRequest{
		AmountMinor: amountMinor,
		Kind:        ledgerdomain.EntryKindTopup,
		ActorID:     1,
	})
	require.NoError(t, err)
}

func strptr(s string) *string { return &s }

func TestCreateChargesAndDerivesExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topup(t, 15000)

	connectedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	sub, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        connectedAt,
		TariffName:         strptr("Основной"),
		TariffCostMinor:    10000,
		TariffDurationDays: 30,
		ActorID:            1,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), sub.ExpiresAt)

	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
}

func TestCreateInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topup(t, 5000)

	_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        time.Now().UTC(),
		TariffCostMinor:    10000,
		TariffDurationDays: 30,
		ActorID:            1,
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)

	// Neither the charge nor the subscription survives the rollback.
	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	count, err := f.rosterSvc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCreateDuplicatePhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topup(t, 30000)

	req := rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        time.Now().UTC(),
		TariffCostMinor:    10000,
		TariffDurationDays: 30,
		ActorID:            1,
	}
	_, err := f.rosterSvc.Create(ctx, req)
	require.NoError(t, err)

	req.Name = "Omar"
	_, err = f.rosterSvc.Create(ctx, req)
	assert.ErrorIs(t, err, rosterdomain.ErrDuplicatePhone)

	// The rejected attempt charges nothing.
	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance)
}

func TestCreateFreeSubscriptionSkipsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        time.Now().UTC(),
		TariffCostMinor:    0,
		TariffDurationDays: 30,
		ActorID:            1,
	})
	require.NoError(t, err)

	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestUpdateConnectionDateRecomputesExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topup(t, 10000)

	_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		TariffCostMinor:    10000,
		TariffDurationDays: 30,
		ActorID:            1,
	})
	require.NoError(t, err)

	moved := time.Date(2024, 2, 1, 12, 30, 0, 0, time.UTC)
	sub, err := f.rosterSvc.UpdateConnectionDate(ctx, "+971501234567", moved, 1)
	require.NoError(t, err)
	assert.Equal(t, moved.Add(30*24*time.Hour), sub.ExpiresAt)

	// A date edit never re-charges.
	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestUpdateConnectionDateUnknownPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.rosterSvc.UpdateConnectionDate(context.Background(), "+971500000000", time.Now().UTC(), 1)
	assert.ErrorIs(t, err, rosterdomain.ErrSubscriptionNotFound)
}

func TestDeleteKeepsLedgerHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.topup(t, 10000)

	_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              "+971501234567",
		Name:               "Ahmed",
		ConnectedAt:        time.Now().UTC(),
		TariffCostMinor:    10000,
		TariffDurationDays: 30,
		ActorID:            1,
	})
	require.NoError(t, err)

	deleted, err := f.rosterSvc.Delete(ctx, "+971501234567", 1)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", deleted.Name)

	_, err = f.rosterSvc.Get(ctx, "+971501234567")
	assert.ErrorIs(t, err, rosterdomain.ErrSubscriptionNotFound)

	// Historical charges are never reversed by deletion.
	balance, err := f.ledgerSvc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestListOrdersByExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, phone := range []string{"+971501111111", "+971502222222", "+971503333333"} {
		_, err := f.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
			Phone:              phone,
			Name:               fmt.Sprintf("User %d", i),
			ConnectedAt:        base.AddDate(0, 0, (2-i)*10),
			TariffDurationDays: 30,
			ActorID:            1,
		})
		require.NoError(t, err)
	}

	subs, err := f.rosterSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.True(t, subs[0].ExpiresAt.Before(subs[1].ExpiresAt))
	assert.True(t, subs[1].ExpiresAt.Before(subs[2].ExpiresAt))
}
