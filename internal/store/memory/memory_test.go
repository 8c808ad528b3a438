package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"apotekku/backend/internal/domain"
)

func TestInvoiceNumbersRestartEachDay(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	day1 := time.Now().UTC()
	day2 := day1.AddDate(0, 0, 1)

	draft := func(at time.Time) domain.SaleDraft {
		return domain.SaleDraft{
			CartItems:     []domain.CartLine{{MedicineID: "med-ors", Quantity: 1}},
			PaymentMethod: "cash",
			AmountPaid:    10000,
			TaxPercent:    16,
			ServedBy:      "kasir",
			SaleDate:      at,
		}
	}

	for i := 0; i < 2; i++ {
		sale, err := s.CreateSale(ctx, draft(day1))
		if err != nil {
			t.Fatalf("day one sale #%d failed: %v", i+1, err)
		}
		want := fmt.Sprintf("INV-%s-%05d", day1.Format("20060102"), i+1)
		if sale.InvoiceNumber != want {
			t.Fatalf("expected invoice %s, got %s", want, sale.InvoiceNumber)
		}
	}

	sale, err := s.CreateSale(ctx, draft(day2))
	if err != nil {
		t.Fatalf("day two sale failed: %v", err)
	}
	want := fmt.Sprintf("INV-%s-00001", day2.Format("20060102"))
	if sale.InvoiceNumber != want {
		t.Fatalf("expected numbering to restart at %s, got %s", want, sale.InvoiceNumber)
	}
}
