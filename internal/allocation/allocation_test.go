package allocation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

var planNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func testBatch(id string, remaining int, expiry time.Time, received time.Time) domain.Batch {
	return domain.Batch{
		ID:                id,
		MedicineID:        "med-1",
		BatchNumber:       strings.ToUpper(id),
		Quantity:          remaining,
		RemainingQuantity: remaining,
		ExpiryDate:        expiry,
		Active:            true,
		ReceivedAt:        received,
	}
}

func TestPlanDrainsEarliestExpiryFirst(t *testing.T) {
	batches := []domain.Batch{
		testBatch("late", 100, planNow.AddDate(1, 0, 0), planNow.AddDate(0, -1, 0)),
		testBatch("early", 30, planNow.AddDate(0, 2, 0), planNow.AddDate(0, -3, 0)),
	}

	plan, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, 50, planNow)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("allocations = %d, want 2", len(plan))
	}
	if plan[0].Batch.ID != "early" || plan[0].Quantity != 30 {
		t.Fatalf("first allocation = %s qty %d, want early qty 30", plan[0].Batch.ID, plan[0].Quantity)
	}
	if plan[1].Batch.ID != "late" || plan[1].Quantity != 20 {
		t.Fatalf("second allocation = %s qty %d, want late qty 20", plan[1].Batch.ID, plan[1].Quantity)
	}
}

func TestPlanBreaksExpiryTiesByReceiptOrder(t *testing.T) {
	expiry := planNow.AddDate(0, 6, 0)
	batches := []domain.Batch{
		testBatch("second-in", 40, expiry, planNow.AddDate(0, 0, -10)),
		testBatch("first-in", 40, expiry, planNow.AddDate(0, 0, -30)),
	}

	plan, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, 10, planNow)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan[0].Batch.ID != "first-in" {
		t.Fatalf("drained %s first, want first-in", plan[0].Batch.ID)
	}
}

func TestPlanSkipsExpiredAndInactiveBatches(t *testing.T) {
	expiresToday := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	inactive := testBatch("inactive", 50, planNow.AddDate(1, 0, 0), planNow)
	inactive.Active = false
	batches := []domain.Batch{
		testBatch("expired", 50, planNow.AddDate(0, -1, 0), planNow.AddDate(0, -6, 0)),
		testBatch("expires-today", 50, expiresToday, planNow.AddDate(0, -6, 0)),
		inactive,
		testBatch("good", 50, planNow.AddDate(0, 9, 0), planNow),
	}

	plan, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, 50, planNow)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan) != 1 || plan[0].Batch.ID != "good" {
		t.Fatalf("plan = %+v, want single allocation from good", plan)
	}

	// Only the good batch counts toward availability.
	if _, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, 51, planNow); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestPlanInsufficientStockReportsAvailability(t *testing.T) {
	batches := []domain.Batch{
		testBatch("only", 7, planNow.AddDate(0, 4, 0), planNow),
	}

	_, err := Plan(domain.Medicine{ID: "med-1", Name: "Cetirizine 10mg"}, batches, 12, planNow)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	for _, fragment := range []string{"Cetirizine 10mg", "requested 12", "available 7"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q missing %q", err.Error(), fragment)
		}
	}
}

func TestPlanRejectsNonPositiveQuantity(t *testing.T) {
	batches := []domain.Batch{
		testBatch("only", 10, planNow.AddDate(0, 4, 0), planNow),
	}

	for _, qty := range []int{0, -3} {
		if _, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, qty, planNow); !errors.Is(err, store.ErrInvalidSale) {
			t.Fatalf("quantity %d: err = %v, want ErrInvalidSale", qty, err)
		}
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	batches := []domain.Batch{
		testBatch("late", 20, planNow.AddDate(1, 0, 0), planNow),
		testBatch("early", 20, planNow.AddDate(0, 1, 0), planNow),
	}

	if _, err := Plan(domain.Medicine{ID: "med-1", Name: "Paracetamol"}, batches, 30, planNow); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if batches[0].ID != "late" || batches[1].ID != "early" {
		t.Fatalf("input slice reordered: %s, %s", batches[0].ID, batches[1].ID)
	}
}
