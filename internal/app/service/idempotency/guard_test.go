package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
)

func TestGuard_Check(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	g := NewGuard(st)

	d, err := g.Check(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, Unprotected, d)

	d, err = g.Check(ctx, lo.ToPtr(""))
	require.NoError(t, err)
	require.Equal(t, Unprotected, d)

	d, err = g.Check(ctx, lo.ToPtr("GT87HJ890"))
	require.NoError(t, err)
	require.Equal(t, Proceed, d)

	rec := g.Record(lo.ToPtr("GT87HJ890"), []string{"12345"}, decimal.NewFromInt(500))
	require.NoError(t, st.CommitAllocation(ctx, &store.AllocationCommit{Reference: rec}))

	d, err = g.Check(ctx, lo.ToPtr("GT87HJ890"))
	require.NoError(t, err)
	require.Equal(t, AlreadyProcessed, d)
	require.Equal(t, "already_processed", d.String())
}

func TestGuard_Record(t *testing.T) {
	g := NewGuard(store.NewMemoryStore())
	require.Nil(t, g.Record(nil, []string{"1"}, decimal.NewFromInt(1)))

	rec := g.Record(lo.ToPtr("R1"), []string{"1", "2"}, decimal.NewFromInt(9))
	require.Equal(t, "R1", rec.ReferenceID)
	require.Equal(t, []string{"1", "2"}, []string(rec.DebtCodes))
}

type brokenStore struct{ store.Store }

func (brokenStore) GetProcessedReference(context.Context, string) (*models.ProcessedReference, error) {
	return nil, errors.New("timeout")
}

func TestGuard_CheckStoreError(t *testing.T) {
	_, err := NewGuard(brokenStore{}).Check(context.Background(), lo.ToPtr("R1"))
	require.ErrorContains(t, err, "timeout")
}

func TestTranslate(t *testing.T) {
	err := Translate(errors.Join(errors.New("commit"), store.ErrDuplicateReference))
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.ErrorIs(t, err, store.ErrDuplicateReference)

	other := errors.New("boom")
	require.Equal(t, other, Translate(other))
	require.NoError(t, Translate(nil))
}
