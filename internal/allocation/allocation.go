// Package allocation plans which batches a sale line draws from.
//
// Policy is first-expiry-first-out: only active batches with stock and an
// expiry date strictly in the future are eligible, ordered by earliest
// expiry, ties broken by receipt order. Planning is pure; callers lock the
// batch rows and apply the resulting debits inside their own unit of work.
package allocation

import (
	"fmt"
	"slices"
	"time"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type Allocation struct {
	Batch    domain.Batch
	Quantity int
}

// Plan returns batch debits summing to exactly requested, or an error
// wrapping store.ErrInsufficientStock carrying the medicine name with the
// requested and available quantities.
func Plan(medicine domain.Medicine, batches []domain.Batch, requested int, now time.Time) ([]Allocation, error) {
	if requested < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidSale)
	}

	today := dateOnly(now)
	eligible := make([]domain.Batch, 0, len(batches))
	available := 0
	for _, batch := range batches {
		if !batch.Active || batch.RemainingQuantity <= 0 {
			continue
		}
		if !dateOnly(batch.ExpiryDate).After(today) {
			continue
		}
		eligible = append(eligible, batch)
		available += batch.RemainingQuantity
	}

	if available < requested {
		return nil, fmt.Errorf("%w: %s requested %d available %d",
			store.ErrInsufficientStock, medicine.Name, requested, available)
	}

	sortFEFO(eligible)

	plan := make([]Allocation, 0, 2)
	outstanding := requested
	for _, batch := range eligible {
		if outstanding == 0 {
			break
		}
		take := batch.RemainingQuantity
		if take > outstanding {
			take = outstanding
		}
		plan = append(plan, Allocation{Batch: batch, Quantity: take})
		outstanding -= take
	}
	return plan, nil
}

// sortFEFO orders by expiry ascending, then receipt time; the stable sort
// preserves insertion order for full ties so repeated plans are identical.
func sortFEFO(batches []domain.Batch) {
	slices.SortStableFunc(batches, compareBatchFEFO)
}

func compareBatchFEFO(a domain.Batch, b domain.Batch) int {
	if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
		return c
	}
	return a.ReceivedAt.Compare(b.ReceivedAt)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
