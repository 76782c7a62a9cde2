// Package idempotency keeps a vendor reference id from being applied twice.
//
// Check is a fast pre-filter only. The authoritative record is the
// ProcessedReference row written in the same commit batch as the debt updates,
// so two concurrent notifications with one reference cannot both land.
package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
)

var ErrAlreadyProcessed = errors.New("reference already processed")

type Decision int

const (
	// Unprotected means there is no reference id to guard on.
	Unprotected Decision = iota
	AlreadyProcessed
	Proceed
)

func (d Decision) String() string {
	switch d {
	case Unprotected:
		return "unprotected"
	case AlreadyProcessed:
		return "already_processed"
	case Proceed:
		return "proceed"
	}
	return "unknown"
}

type Guard struct {
	store store.Store
}

func NewGuard(st store.Store) *Guard { return &Guard{store: st} }

func (g *Guard) Check(ctx context.Context, referenceID *string) (Decision, error) {
	ref := lo.FromPtr(referenceID)
	if ref == "" {
		return Unprotected, nil
	}
	_, err := g.store.GetProcessedReference(ctx, ref)
	switch {
	case err == nil:
		return AlreadyProcessed, nil
	case errors.Is(err, store.ErrNotFound):
		return Proceed, nil
	default:
		return Proceed, fmt.Errorf("failed to check reference %s: %w", ref, err)
	}
}

// Record builds the row to commit alongside the debt updates. Nil when there is
// no reference id.
func (g *Guard) Record(referenceID *string, debtCodes []string, amount decimal.Decimal) *models.ProcessedReference {
	ref := lo.FromPtr(referenceID)
	if ref == "" {
		return nil
	}
	return &models.ProcessedReference{ReferenceID: ref, DebtCodes: debtCodes, Amount: amount}
}

// Translate maps a commit failure caused by a concurrent duplicate to
// ErrAlreadyProcessed and leaves every other error untouched.
func Translate(err error) error {
	if errors.Is(err, store.ErrDuplicateReference) {
		return fmt.Errorf("%w: %w", ErrAlreadyProcessed, err)
	}
	return err
}
