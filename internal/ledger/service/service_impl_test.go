package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) ledgerdomain.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node})
}

func TestBalanceIsSumOfEntries(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 15000, Kind: ledgerdomain.EntryKindTopup, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: -10000, Kind: ledgerdomain.EntryKindCharge, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 500, Kind: ledgerdomain.EntryKindMigrationTopup, ActorID: 1})
	require.NoError(t, err)

	balance, err = svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), balance)
}

func TestChargeRejectedWhenBalanceWouldGoNegative(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 10000, Kind: ledgerdomain.EntryKindTopup, ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: -10001, Kind: ledgerdomain.EntryKindCharge, ActorID: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)

	// A rejected charge leaves no entry behind.
	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
}

func TestChargeToExactlyZeroSucceeds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 5500, Kind: ledgerdomain.EntryKindTopup, ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: -5500, Kind: ledgerdomain.EntryKindCharge, ActorID: 1})
	require.NoError(t, err)

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestRecordValidatesSignPerKind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: -100, Kind: ledgerdomain.EntryKindTopup, ActorID: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 0, Kind: ledgerdomain.EntryKindTopup, ActorID: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 100, Kind: ledgerdomain.EntryKindCharge, ActorID: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Record(ctx, ledgerdomain.RecordRequest{AmountMinor: 100, Kind: "refund", ActorID: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidKind)
}
