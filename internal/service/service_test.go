package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"apotekku/backend/internal/alerts"
	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	engine := alerts.NewEngine(cache.NoopAlertCache{}, 5*time.Second, 90)
	return New(repo, engine, 16)
}

func pharmacistCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "apoteker",
		Role:     "pharmacist",
	})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "kasir",
		Role:     "cashier",
	})
}

func TestCreateSaleComputesTotals(t *testing.T) {
	svc := newTestService()

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleRequest{
		PaymentMethod:   "cash",
		AmountPaid:      2000,
		DiscountPercent: 10,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if sale.Subtotal != 1000 {
		t.Fatalf("expected subtotal 1000, got %d", sale.Subtotal)
	}
	if sale.DiscountAmount != 100 {
		t.Fatalf("expected discount 100, got %d", sale.DiscountAmount)
	}
	if sale.TaxAmount != 144 {
		t.Fatalf("expected tax 144 on 900 taxable, got %d", sale.TaxAmount)
	}
	if sale.TotalAmount != 1044 {
		t.Fatalf("expected total 1044, got %d", sale.TotalAmount)
	}
	if sale.ChangeAmount != 956 {
		t.Fatalf("expected change 956, got %d", sale.ChangeAmount)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected completed sale, got %s", sale.Status)
	}

	wantPrefix := "INV-" + time.Now().UTC().Format("20060102") + "-"
	if !strings.HasPrefix(sale.InvoiceNumber, wantPrefix) {
		t.Fatalf("expected invoice prefix %s, got %s", wantPrefix, sale.InvoiceNumber)
	}
}

func TestCreateSaleRequiresAuthentication(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateSale(context.Background(), domain.SaleRequest{
		AmountPaid: 1000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 1},
		},
	})
	if err == nil {
		t.Fatalf("expected sale without actor to fail")
	}
}

func TestCreateSaleDrainsEarliestExpiryFirst(t *testing.T) {
	svc := newTestService()

	// PARA-A1 expires before PARA-A2 and holds 120 units, so a 130-unit sale
	// must drain A1 completely before touching A2.
	sale, err := svc.CreateSale(cashierCtx(), domain.SaleRequest{
		AmountPaid: 100000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 130},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 sale items across batches, got %d", len(sale.Items))
	}
	if sale.Items[0].Quantity != 120 {
		t.Fatalf("expected first batch drained for 120 units, got %d", sale.Items[0].Quantity)
	}
	if sale.Items[1].Quantity != 10 {
		t.Fatalf("expected 10 units from second batch, got %d", sale.Items[1].Quantity)
	}

	total := 0
	for _, item := range sale.Items {
		total += item.Quantity
	}
	if total != 130 {
		t.Fatalf("expected allocated units to sum to 130, got %d", total)
	}

	batches, err := svc.ListBatches(cashierCtx(), "med-paracetamol", false)
	if err != nil {
		t.Fatalf("list batches failed: %v", err)
	}
	remaining := 0
	for _, b := range batches {
		remaining += b.RemainingQuantity
	}
	if remaining != 190 {
		t.Fatalf("expected 190 units remaining after sale, got %d", remaining)
	}
}

func TestCreateSaleInsufficientStockLeavesStockUntouched(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	_, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 1000000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 1},
			{MedicineID: "med-cetirizine", Quantity: 5000},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The first line was satisfiable; an aborted sale must not have touched it.
	medicine, err := svc.GetMedicine(ctx, "med-paracetamol")
	if err != nil {
		t.Fatalf("get medicine failed: %v", err)
	}
	if medicine.TotalQuantity != 320 {
		t.Fatalf("expected paracetamol stock unchanged at 320, got %d", medicine.TotalQuantity)
	}

	sales, err := svc.ListSales(ctx, "", "", "", 50)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales recorded after aborted checkout, got %d", len(sales))
	}
}

func TestCreateSaleRejectsMalformedCartLine(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	// One bad line rejects the whole cart, valid lines included.
	_, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 2},
			{MedicineID: "med-ors", Quantity: 0},
		},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale for zero quantity, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale for missing medicine id, got %v", err)
	}

	medicine, err := svc.GetMedicine(ctx, "med-paracetamol")
	if err != nil {
		t.Fatalf("get medicine failed: %v", err)
	}
	if medicine.TotalQuantity != 320 {
		t.Fatalf("expected paracetamol stock unchanged at 320, got %d", medicine.TotalQuantity)
	}
}

func TestInvoiceNumbersIncrementWithinDay(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	var invoices []string
	for i := 0; i < 3; i++ {
		sale, err := svc.CreateSale(ctx, domain.SaleRequest{
			AmountPaid: 10000,
			CartItems: []domain.CartLine{
				{MedicineID: "med-ors", Quantity: 1},
			},
		})
		if err != nil {
			t.Fatalf("sale #%d failed: %v", i, err)
		}
		invoices = append(invoices, sale.InvoiceNumber)
	}

	day := time.Now().UTC().Format("20060102")
	for i, invoice := range invoices {
		want := fmt.Sprintf("INV-%s-%05d", day, i+1)
		if invoice != want {
			t.Fatalf("expected invoice %s, got %s", want, invoice)
		}
	}
}

func TestCreateSaleRequiresPrescriptionForRestrictedMedicine(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateSale(cashierCtx(), domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-amoxicillin", Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale for missing prescription, got %v", err)
	}
}

func TestPrescriptionSaleMarksPrescriptionFilled(t *testing.T) {
	svc := newTestService()
	ctx := pharmacistCtx()

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
		FirstName: "Siti",
		Phone:     "0811111111",
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	validUntil := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
	prescription, err := svc.CreatePrescription(ctx, domain.PrescriptionCreateRequest{
		CustomerID:       customer.ID,
		DoctorName:       "dr. Rahma",
		PrescriptionDate: today,
		ValidUntil:       validUntil,
		Items: []domain.PrescriptionItem{
			{MedicineID: "med-amoxicillin", Dosage: "250mg", Frequency: "3x daily", QuantityPrescribed: 15},
		},
	})
	if err != nil {
		t.Fatalf("create prescription failed: %v", err)
	}
	if prescription.Status != domain.PrescriptionStatusPending {
		t.Fatalf("expected pending prescription, got %s", prescription.Status)
	}

	_, err = svc.CreateSale(ctx, domain.SaleRequest{
		CustomerID:     customer.ID,
		PrescriptionID: prescription.ID,
		AmountPaid:     100000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-amoxicillin", Quantity: 15},
		},
	})
	if err != nil {
		t.Fatalf("prescription sale failed: %v", err)
	}

	filled, err := svc.GetPrescription(ctx, prescription.ID)
	if err != nil {
		t.Fatalf("get prescription failed: %v", err)
	}
	if filled.Status != domain.PrescriptionStatusFilled {
		t.Fatalf("expected filled prescription, got %s", filled.Status)
	}
}

func TestLoyaltyPointsAccrueOnSale(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
		FirstName: "Budi",
		Phone:     "0822222222",
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleRequest{
		CustomerID: customer.ID,
		AmountPaid: 100000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-cough-syrup", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	updated, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	wantPoints := sale.TotalAmount / 100
	if updated.LoyaltyPoints != wantPoints {
		t.Fatalf("expected %d loyalty points, got %d", wantPoints, updated.LoyaltyPoints)
	}
	if updated.TotalPurchases != sale.TotalAmount {
		t.Fatalf("expected total purchases %d, got %d", sale.TotalAmount, updated.TotalPurchases)
	}
}

func TestReturnLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := pharmacistCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-paracetamol", Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected single sale item, got %d", len(sale.Items))
	}
	saleItem := sale.Items[0]

	ret, err := svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "customer_request",
		Items: []domain.ReturnLine{
			{SaleItemID: saleItem.ID, Quantity: 1, Restock: true},
		},
	})
	if err != nil {
		t.Fatalf("first return failed: %v", err)
	}
	if ret.RefundAmount != saleItem.UnitPrice {
		t.Fatalf("expected refund %d for one unit, got %d", saleItem.UnitPrice, ret.RefundAmount)
	}
	wantPrefix := "RET-" + time.Now().UTC().Format("20060102") + "-"
	if !strings.HasPrefix(ret.ReturnNumber, wantPrefix) {
		t.Fatalf("expected return number prefix %s, got %s", wantPrefix, ret.ReturnNumber)
	}

	afterPartial, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if afterPartial.Status != domain.SaleStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", afterPartial.Status)
	}

	// Restocked unit goes back to the originating batch.
	medicine, err := svc.GetMedicine(ctx, "med-paracetamol")
	if err != nil {
		t.Fatalf("get medicine failed: %v", err)
	}
	if medicine.TotalQuantity != 317 {
		t.Fatalf("expected 317 units after restock, got %d", medicine.TotalQuantity)
	}

	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "customer_request",
		Items: []domain.ReturnLine{
			{SaleItemID: saleItem.ID, Quantity: 3, Restock: true},
		},
	})
	if err != nil {
		t.Fatalf("second return failed: %v", err)
	}

	afterFull, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if afterFull.Status != domain.SaleStatusRefunded {
		t.Fatalf("expected refunded after all units returned, got %s", afterFull.Status)
	}
}

func TestReturnRestockIntoDeactivatedBatchKeepsAggregate(t *testing.T) {
	svc := newTestService()
	ctx := pharmacistCtx()

	// ORS-E1 is the only ORS batch, so deactivating it zeroes the aggregate.
	sale, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-ors", Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if _, err := svc.DeactivateBatch(ctx, sale.Items[0].BatchID); err != nil {
		t.Fatalf("deactivate batch failed: %v", err)
	}
	medicine, err := svc.GetMedicine(ctx, "med-ors")
	if err != nil {
		t.Fatalf("get medicine failed: %v", err)
	}
	if medicine.TotalQuantity != 0 {
		t.Fatalf("expected zero sellable units after deactivation, got %d", medicine.TotalQuantity)
	}

	if _, err := svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "customer_request",
		Items: []domain.ReturnLine{
			{SaleItemID: sale.Items[0].ID, Quantity: 5, Restock: true},
		},
	}); err != nil {
		t.Fatalf("return failed: %v", err)
	}

	// The units land back in the retired batch but stay out of the sellable
	// aggregate, which counts active batches only.
	medicine, err = svc.GetMedicine(ctx, "med-ors")
	if err != nil {
		t.Fatalf("get medicine failed: %v", err)
	}
	if medicine.TotalQuantity != 0 {
		t.Fatalf("expected aggregate to stay at 0 after restock into inactive batch, got %d", medicine.TotalQuantity)
	}

	batches, err := svc.ListBatches(ctx, "med-ors", true)
	if err != nil {
		t.Fatalf("list batches failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected single ORS batch, got %d", len(batches))
	}
	if batches[0].Active {
		t.Fatalf("expected batch to remain inactive after restock")
	}
	if batches[0].RemainingQuantity != 200 {
		t.Fatalf("expected 200 units held in the retired batch, got %d", batches[0].RemainingQuantity)
	}
}

func TestReturnRejectsCumulativeOverReturn(t *testing.T) {
	svc := newTestService()
	ctx := pharmacistCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-ibuprofen", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	saleItem := sale.Items[0]

	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "damaged",
		Items: []domain.ReturnLine{
			{SaleItemID: saleItem.ID, Quantity: 2, Restock: false},
		},
	})
	if err != nil {
		t.Fatalf("first return failed: %v", err)
	}

	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "damaged",
		Items: []domain.ReturnLine{
			{SaleItemID: saleItem.ID, Quantity: 2, Restock: false},
		},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected cumulative over-return to be rejected, got %v", err)
	}
}

func TestProcessReturnRequiresPharmacistOrManager(t *testing.T) {
	svc := newTestService()

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-ors", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	_, err = svc.ProcessReturn(cashierCtx(), domain.ReturnRequest{
		SaleID: sale.ID,
		Reason: "customer_request",
		Items: []domain.ReturnLine{
			{SaleItemID: sale.Items[0].ID, Quantity: 1, Restock: true},
		},
	})
	if err == nil {
		t.Fatalf("expected cashier return to be rejected")
	}
}

func TestCreateMedicineRequiresPharmacist(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateMedicine(cashierCtx(), domain.MedicineCreateRequest{
		SKU:          "MED-VITC-500",
		Name:         "Vitamin C",
		Category:     "supplement",
		Form:         "tablet",
		SellingPrice: 600,
	})
	if err == nil {
		t.Fatalf("expected cashier create medicine to fail")
	}

	medicine, err := svc.CreateMedicine(pharmacistCtx(), domain.MedicineCreateRequest{
		SKU:          "med-vitc-500",
		Name:         "Vitamin C",
		Category:     "supplement",
		Form:         "Tablet",
		SellingPrice: 600,
	})
	if err != nil {
		t.Fatalf("pharmacist create medicine failed: %v", err)
	}
	if medicine.SKU != "MED-VITC-500" {
		t.Fatalf("expected SKU uppercased, got %s", medicine.SKU)
	}
	if medicine.Form != "tablet" {
		t.Fatalf("expected form lowercased, got %s", medicine.Form)
	}
}

func TestReceiveBatchRejectsExpiryBeforeManufacture(t *testing.T) {
	svc := newTestService()

	_, err := svc.ReceiveBatch(pharmacistCtx(), domain.BatchReceiveRequest{
		MedicineID:      "med-paracetamol",
		BatchNumber:     "PARA-BAD",
		Quantity:        50,
		ManufactureDate: "2026-06-01",
		ExpiryDate:      "2026-05-01",
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected inverted dates to be rejected, got %v", err)
	}
}

func TestAdjustStockRejectsUnknownReason(t *testing.T) {
	svc := newTestService()

	_, err := svc.AdjustStock(pharmacistCtx(), domain.StockAdjustmentRequest{
		BatchID:  "batch-seed-01",
		Quantity: -5,
		Reason:   "shrinkage",
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected unknown reason to be rejected, got %v", err)
	}

	adjustment, err := svc.AdjustStock(pharmacistCtx(), domain.StockAdjustmentRequest{
		BatchID:  "batch-seed-01",
		Quantity: -5,
		Reason:   "damaged",
	})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if adjustment.Quantity != -5 {
		t.Fatalf("expected adjustment of -5, got %d", adjustment.Quantity)
	}
}

func TestDailyReportAggregatesSales(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleRequest{
		AmountPaid: 10000,
		CartItems: []domain.CartLine{
			{MedicineID: "med-cetirizine", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.SaleCount != 1 {
		t.Fatalf("expected 1 sale in report, got %d", report.SaleCount)
	}
	if report.NetSales != sale.TotalAmount {
		t.Fatalf("expected net sales %d, got %d", sale.TotalAmount, report.NetSales)
	}
	if report.EstimatedMargin <= 0 {
		t.Fatalf("expected positive margin, got %d", report.EstimatedMargin)
	}
}

func TestStockAlertsFlagLowStockMedicine(t *testing.T) {
	svc := newTestService()
	ctx := pharmacistCtx()

	// A medicine with no batches sits at zero units, below any reorder level.
	medicine, err := svc.CreateMedicine(ctx, domain.MedicineCreateRequest{
		SKU:          "MED-ZINC-20",
		Name:         "Zinc",
		Category:     "supplement",
		Form:         "tablet",
		SellingPrice: 450,
		ReorderLevel: 25,
	})
	if err != nil {
		t.Fatalf("create medicine failed: %v", err)
	}

	resp, err := svc.StockAlerts(ctx)
	if err != nil {
		t.Fatalf("stock alerts failed: %v", err)
	}

	found := false
	for _, alert := range resp.Alerts {
		if alert.MedicineID == medicine.ID && alert.Type == domain.AlertTypeLowStock {
			found = true
			if alert.Priority != domain.AlertPriorityCritical {
				t.Fatalf("expected critical priority at zero units, got %s", alert.Priority)
			}
		}
	}
	if !found {
		t.Fatalf("expected low stock alert for new medicine")
	}
}
