// internal/service/reservation_manager_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productVoucher int64 = 10

func TestReservationExpiresAndFreesStock(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: 5}})

	first, err := l.reserve.Reserve(ctx, productVoucher, 5, "checkout-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, l.clock.Now().Add(time.Minute), first.ExpiresAt)

	_, err = l.reserve.Reserve(ctx, productVoucher, 1, "checkout-2", time.Minute)
	assert.ErrorIs(t, err, util.ErrNoStockAvailable)

	l.clock.Advance(time.Minute + time.Second)
	swept, err := l.reserve.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)
	assert.Equal(t, int64(1), l.metrics.swept.Load())

	second, err := l.reserve.Reserve(ctx, productVoucher, 1, "checkout-2", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	expired, err := l.reserve.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, expired.IsActive)
	assert.Equal(t, domain.ReleaseReasonExpired, expired.ReleaseReason)
}

func TestReservationReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: 3}})

	r, err := l.reserve.Reserve(ctx, productVoucher, 3, "checkout-1", 0)
	require.NoError(t, err)
	assert.Equal(t, l.clock.Now().Add(time.Minute), r.ExpiresAt, "zero ttl uses the default")

	available, err := l.reserve.Available(ctx, productVoucher)
	require.NoError(t, err)
	assert.Zero(t, available)

	require.NoError(t, l.reserve.Release(ctx, r.ID))
	require.NoError(t, l.reserve.Release(ctx, r.ID))

	available, err = l.reserve.Available(ctx, productVoucher)
	require.NoError(t, err)
	assert.Equal(t, int64(3), available)

	// an explicit release is never overwritten by a later sweep
	l.clock.Advance(time.Hour)
	swept, err := l.reserve.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
	released, err := l.reserve.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseReasonReleased, released.ReleaseReason)

	assert.ErrorIs(t, l.reserve.Release(ctx, "00000000-0000-0000-0000-000000000000"), util.ErrNotFound)
}

func TestReservationValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: 3}})

	_, err := l.reserve.Reserve(ctx, productVoucher, 0, "h", time.Minute)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = l.reserve.Reserve(ctx, productVoucher, 1, "", time.Minute)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = l.reserve.Reserve(ctx, 404, 1, "h", time.Minute)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	const stock = 7
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: stock}})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, refused := 0, 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.reserve.Reserve(ctx, productVoucher, 1, "burst", time.Minute)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case errors.Is(err, util.ErrNoStockAvailable):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, stock, granted)
	assert.Equal(t, 30-stock, refused)
}

func TestPurchaseDebitsAndReleases(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: 2}})
	account := l.openFunded(t, "yara", 100000)
	ref := "PLN-778899"

	result, err := l.purchases.Purchase(ctx, PurchaseRequest{
		AccountID:   account.ID,
		ProductID:   productVoucher,
		Quantity:    2,
		UnitPrice:   decimal.NewFromInt(20000),
		ProviderRef: &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypePPOBPayment, result.Transaction.Type)
	assert.True(t, result.Transaction.Amount.Equal(decimal.NewFromInt(40000)))
	assert.Equal(t, ref, *result.Transaction.ReferenceID)
	assert.True(t, l.balance(t, account.ID).Equal(decimal.NewFromInt(60000)))

	reservation, err := l.reserve.Get(ctx, result.ReservationID)
	require.NoError(t, err)
	assert.False(t, reservation.IsActive)
	available, err := l.reserve.Available(ctx, productVoucher)
	require.NoError(t, err)
	assert.Equal(t, int64(2), available)
}

func TestPurchaseFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{stock: map[int64]int64{productVoucher: 1}})
	account := l.openFunded(t, "zed", 10)

	_, err := l.purchases.Purchase(ctx, PurchaseRequest{AccountID: account.ID, ProductID: productVoucher, Quantity: 1, UnitPrice: decimal.NewFromInt(50)})
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.True(t, l.balance(t, account.ID).Equal(decimal.NewFromInt(10)))

	available, err := l.reserve.Available(ctx, productVoucher)
	require.NoError(t, err)
	assert.Equal(t, int64(1), available)

	_, err = l.purchases.Purchase(ctx, PurchaseRequest{AccountID: account.ID, ProductID: productVoucher, Quantity: 2, UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, util.ErrNoStockAvailable)
	assert.Len(t, l.history(t, account.ID), 1)

	_, err = l.purchases.Purchase(ctx, PurchaseRequest{AccountID: account.ID, ProductID: productVoucher, Quantity: 1, UnitPrice: decimal.Zero})
	assert.ErrorIs(t, err, util.ErrInvalidAmount)
	_, err = l.purchases.Purchase(ctx, PurchaseRequest{AccountID: account.ID, ProductID: productVoucher, Quantity: 1, UnitPrice: decimal.RequireFromString("1.23456")})
	assert.ErrorIs(t, err, util.ErrInvalidAmount)
}
