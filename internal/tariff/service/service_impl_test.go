package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) tariffdomain.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tariffdomain.Tariff{}))

	return NewService(Params{DB: db, Log: zap.NewNop()})
}

func TestUpsertReplacesByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "Основной", 5500, 30)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, "Основной", 6000, 45)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "Основной")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), got.CostMinor)
	assert.Equal(t, 45, got.DurationDays)

	tariffs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tariffs, 1)
}

func TestUpsertValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "   ", 5500, 30)
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidName)

	_, err = svc.Upsert(ctx, "Базовый", 0, 30)
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidCost)

	_, err = svc.Upsert(ctx, "Базовый", tariffdomain.MaxCostMinor+1, 30)
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidCost)

	_, err = svc.Upsert(ctx, "Базовый", 5500, 0)
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidDuration)

	_, err = svc.Upsert(ctx, "Базовый", 5500, tariffdomain.MaxDurationDays+1)
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidDuration)
}

func TestGetUnknownTariff(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "нет такого")
	assert.ErrorIs(t, err, tariffdomain.ErrTariffNotFound)
}

func TestListOrdersByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"C", "A", "B"} {
		_, err := svc.Upsert(ctx, name, 100, 30)
		require.NoError(t, err)
	}

	tariffs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, tariffs, 3)
	assert.Equal(t, "A", tariffs[0].Name)
	assert.Equal(t, "B", tariffs[1].Name)
	assert.Equal(t, "C", tariffs[2].Name)
}
