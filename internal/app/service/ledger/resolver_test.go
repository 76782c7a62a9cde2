package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/types"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"254712345678", "254712345678", true},
		{"+254712345678", "254712345678", true},
		{"0712345678", "254712345678", true},
		{"712345678", "254712345678", true},
		{"0712 345-678", "254712345678", true},
		{"12345", "", false},
		{"", "", false},
		{"07123456789", "", false},
		{"abc712345678", "", false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, ok := NormalizePhone(c.in, "254")
			require.Equal(t, c.ok, ok)
			require.Equal(t, c.want, got)
		})
	}
}

func newResolver(st store.Store) *Resolver {
	cfg := &config.Config{Reconcile: config.ReconcileConfig{CountryCode: "254"}}
	return NewResolver(st, cfg, zap.NewNop().Sugar())
}

func debt(code, principal string, created time.Time) *models.Debt {
	p := decimal.RequireFromString(principal)
	return &models.Debt{Code: code, PrincipalAmount: p, RemainingAmount: p, Status: types.DebtStatusPending, CreatedAt: created}
}

func TestResolve_SingleDebtMatch(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDebt(debt("12345", "500", time.Now()))

	res, err := newResolver(st).Resolve(context.Background(), "12345", lo.ToPtr("254712345678"))
	require.NoError(t, err)
	require.Equal(t, SingleDebtMatch, res.Kind)
	require.Equal(t, "12345", res.Debt.Code)
}

func TestResolve_PayerDebtSetOrderedByCreation(t *testing.T) {
	st := store.NewMemoryStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.PutDebt(debt("b", "500", t0.Add(time.Hour)))
	st.PutDebt(debt("a", "300", t0))
	st.PutDebt(debt("c", "100", t0.Add(time.Hour)))
	st.PutPayerAccount(&models.PayerAccount{Phone: "254712345678", DebtCodes: []string{"c", "b", "a", "gone"}})

	res, err := newResolver(st).Resolve(context.Background(), "0712345678", nil)
	require.NoError(t, err)
	require.Equal(t, PayerDebtSet, res.Kind)
	require.Equal(t, "254712345678", res.Account.Phone)
	codes := lo.Map(res.Debts, func(d *models.Debt, _ int) string { return d.Code })
	// a is oldest; b and c share a timestamp so list position decides
	require.Equal(t, []string{"a", "c", "b"}, codes)
}

func TestResolve_FallsBackToPayerPhone(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDebt(debt("1", "300", time.Now()))
	st.PutPayerAccount(&models.PayerAccount{Phone: "254700000001", DebtCodes: []string{"1"}})

	res, err := newResolver(st).Resolve(context.Background(), "99999", lo.ToPtr("+254700000001"))
	require.NoError(t, err)
	require.Equal(t, PayerDebtSet, res.Kind)
	require.Len(t, res.Debts, 1)
}

func TestResolve_AccountWithoutDebtsIsSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutDebt(debt("1", "300", time.Now()))
	st.PutPayerAccount(&models.PayerAccount{Phone: "254712345678"})
	st.PutPayerAccount(&models.PayerAccount{Phone: "254700000001", DebtCodes: []string{"1"}})

	res, err := newResolver(st).Resolve(context.Background(), "0712345678", lo.ToPtr("254700000001"))
	require.NoError(t, err)
	require.Equal(t, PayerDebtSet, res.Kind)
	require.Equal(t, "254700000001", res.Account.Phone)
}

func TestResolve_NoMatch(t *testing.T) {
	st := store.NewMemoryStore()
	res, err := newResolver(st).Resolve(context.Background(), "777", lo.ToPtr("254712345678"))
	require.NoError(t, err)
	require.Equal(t, NoMatch, res.Kind)
	require.Nil(t, res.Debt)
	require.Empty(t, res.Debts)
}

type failingStore struct {
	store.Store
}

func (failingStore) GetDebt(context.Context, string) (*models.Debt, error) {
	return nil, errors.New("connection reset")
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	_, err := newResolver(failingStore{store.NewMemoryStore()}).Resolve(context.Background(), "1", nil)
	require.ErrorContains(t, err, "connection reset")
}
