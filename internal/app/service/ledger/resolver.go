// Package ledger resolves a parsed payment to the debts it should settle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/logctx"
)

type ResolutionKind string

const (
	SingleDebtMatch ResolutionKind = "single_debt"
	PayerDebtSet    ResolutionKind = "payer_debt_set"
	NoMatch         ResolutionKind = "no_match"
)

type Resolution struct {
	Kind ResolutionKind
	// Debt is set for SingleDebtMatch.
	Debt *models.Debt
	// Debts and Account are set for PayerDebtSet, oldest debt first.
	Debts   []*models.Debt
	Account *models.PayerAccount
}

type Resolver struct {
	store       store.Store
	countryCode string
	log         *zap.SugaredLogger
}

func NewResolver(st store.Store, cfg *config.Config, log *zap.SugaredLogger) *Resolver {
	return &Resolver{store: st, countryCode: cfg.Reconcile.CountryCode, log: log}
}

// Resolve never mutates anything. An unknown debt code is not an error, the
// lookup just falls through to the payer-account path.
func (r *Resolver) Resolve(ctx context.Context, accountToken string, payerPhone *string) (*Resolution, error) {
	log := logctx.FromCtx(ctx, r.log)

	if accountToken != "" {
		debt, err := r.store.GetDebt(ctx, accountToken)
		switch {
		case err == nil:
			return &Resolution{Kind: SingleDebtMatch, Debt: debt}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to look up debt %s: %w", accountToken, err)
		}
	}

	for _, phone := range r.candidatePhones(accountToken, payerPhone) {
		acc, err := r.store.GetPayerAccount(ctx, phone)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up payer account %s: %w", phone, err)
		}
		if len(acc.DebtCodes) == 0 {
			continue
		}

		debts, err := r.store.GetDebts(ctx, acc.DebtCodes)
		if err != nil {
			return nil, fmt.Errorf("failed to load debts of payer %s: %w", phone, err)
		}
		if missing := len(acc.DebtCodes) - len(debts); missing > 0 {
			log.Warnw("payer_account_dangling_debt_codes", "phone", phone, "missing", missing)
		}
		if len(debts) == 0 {
			continue
		}
		return &Resolution{Kind: PayerDebtSet, Debts: orderByCreation(debts, acc.DebtCodes), Account: acc}, nil
	}
	return &Resolution{Kind: NoMatch}, nil
}

// candidatePhones lists normalised numbers to try, account token first.
func (r *Resolver) candidatePhones(accountToken string, payerPhone *string) []string {
	var out []string
	if p, ok := NormalizePhone(accountToken, r.countryCode); ok {
		out = append(out, p)
	}
	if p, ok := NormalizePhone(lo.FromPtr(payerPhone), r.countryCode); ok {
		out = append(out, p)
	}
	return lo.Uniq(out)
}

// orderByCreation sorts by CreatedAt, falling back to the order of codes.
func orderByCreation(debts []*models.Debt, codes []string) []*models.Debt {
	pos := make(map[string]int, len(codes))
	for i, c := range codes {
		if _, seen := pos[c]; !seen {
			pos[c] = i
		}
	}
	out := lo.Uniq(debts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return pos[a.Code] < pos[b.Code]
	})
	return out
}
