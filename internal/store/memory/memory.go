package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/allocation"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/pricing"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	medicinesByID     map[string]domain.Medicine
	medicineIDBySKU   map[string]string
	batchesByMedicine map[string][]domain.Batch
	salesByID         map[string]*domain.Sale
	saleIDByInvoice   map[string]string
	returnsByID       map[string]*domain.Return
	adjustments       []domain.StockAdjustment
	customersByID     map[string]domain.Customer
	suppliersByID     map[string]domain.Supplier
	prescriptionsByID map[string]*domain.Prescription
	docCounters       map[string]int
	usersByUsername   map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		medicinesByID:     make(map[string]domain.Medicine),
		medicineIDBySKU:   make(map[string]string),
		batchesByMedicine: make(map[string][]domain.Batch),
		salesByID:         make(map[string]*domain.Sale),
		saleIDByInvoice:   make(map[string]string),
		returnsByID:       make(map[string]*domain.Return),
		adjustments:       make([]domain.StockAdjustment, 0, 64),
		customersByID:     make(map[string]domain.Customer),
		suppliersByID:     make(map[string]domain.Supplier),
		prescriptionsByID: make(map[string]*domain.Prescription),
		docCounters:       make(map[string]int),
		usersByUsername:   seedUsers(),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD, SEED_PHARMACIST_PASSWORD and
// SEED_CASHIER_PASSWORD. If unset, hardcoded dev defaults are used with a
// warning. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	pharmacistPwd := envOr("SEED_PHARMACIST_PASSWORD", "pharma123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_PHARMACIST_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"pharmacist", pharmacistPwd, domain.RolePharmacist},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store stocked with a small formulary and batches at
// staggered expiry dates, enough for the POS to be usable out of the box.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	medicines := []domain.Medicine{
		{ID: "med-paracetamol", SKU: "MED-PARA-500", Name: "Paracetamol", GenericName: "paracetamol", Category: "analgesic", Manufacturer: "Kimia Jaya", Form: "tablet", Strength: "500mg", UnitCost: 300, SellingPrice: 500, ReorderLevel: 50, Active: true},
		{ID: "med-amoxicillin", SKU: "MED-AMOX-250", Name: "Amoxicillin", GenericName: "amoxicillin", Category: "antibiotic", Manufacturer: "Kimia Jaya", Form: "capsule", Strength: "250mg", UnitCost: 900, SellingPrice: 1500, ReorderLevel: 40, RequiresPrescription: true, Active: true},
		{ID: "med-cetirizine", SKU: "MED-CETI-10", Name: "Cetirizine", GenericName: "cetirizine", Category: "antihistamine", Manufacturer: "Medika Farma", Form: "tablet", Strength: "10mg", UnitCost: 400, SellingPrice: 700, ReorderLevel: 30, Active: true},
		{ID: "med-ibuprofen", SKU: "MED-IBU-400", Name: "Ibuprofen", GenericName: "ibuprofen", Category: "analgesic", Manufacturer: "Medika Farma", Form: "tablet", Strength: "400mg", UnitCost: 500, SellingPrice: 900, ReorderLevel: 40, Active: true},
		{ID: "med-ors", SKU: "MED-ORS-01", Name: "Oral Rehydration Salts", Category: "supplement", Manufacturer: "Sehat Abadi", Form: "powder", Strength: "1 sachet", UnitCost: 200, SellingPrice: 400, ReorderLevel: 60, Active: true},
		{ID: "med-cough-syrup", SKU: "MED-COUGH-60", Name: "Cough Syrup", Category: "cold_flu", Manufacturer: "Sehat Abadi", Form: "syrup", Strength: "60ml", UnitCost: 1800, SellingPrice: 2800, ReorderLevel: 20, Active: true},
	}

	for _, m := range medicines {
		m.CreatedAt = now
		m.UpdatedAt = now
		s.medicinesByID[m.ID] = m
		s.medicineIDBySKU[m.SKU] = m.ID
	}

	seedBatches := []struct {
		medicineID string
		number     string
		qty        int
		monthsOut  int
	}{
		{"med-paracetamol", "PARA-A1", 120, 6},
		{"med-paracetamol", "PARA-A2", 200, 14},
		{"med-amoxicillin", "AMOX-B1", 80, 9},
		{"med-cetirizine", "CETI-C1", 90, 12},
		{"med-ibuprofen", "IBU-D1", 100, 4},
		{"med-ibuprofen", "IBU-D2", 150, 18},
		{"med-ors", "ORS-E1", 200, 24},
		{"med-cough-syrup", "SYR-F1", 60, 10},
	}
	for i, b := range seedBatches {
		medicine := s.medicinesByID[b.medicineID]
		batch := domain.Batch{
			ID:                    fmt.Sprintf("batch-seed-%02d", i+1),
			MedicineID:            b.medicineID,
			BatchNumber:           b.number,
			Quantity:              b.qty,
			RemainingQuantity:     b.qty,
			UnitCost:              medicine.UnitCost,
			SellingPriceAtReceipt: medicine.SellingPrice,
			ManufactureDate:       now.AddDate(0, -2, 0),
			ExpiryDate:            now.AddDate(0, b.monthsOut, 0),
			Active:                true,
			ReceivedAt:            now.Add(time.Duration(i) * time.Second),
		}
		s.batchesByMedicine[b.medicineID] = append(s.batchesByMedicine[b.medicineID], batch)
		medicine.TotalQuantity += b.qty
		s.medicinesByID[b.medicineID] = medicine
	}

	return s
}

func (s *Store) ListMedicines(_ context.Context, activeOnly bool) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicines := make([]domain.Medicine, 0, len(s.medicinesByID))
	for _, m := range s.medicinesByID {
		if activeOnly && !m.Active {
			continue
		}
		medicines = append(medicines, m)
	}
	slices.SortFunc(medicines, func(a, b domain.Medicine) int {
		return cmpString(a.Name, b.Name)
	})
	return medicines, nil
}

func (s *Store) SearchMedicines(_ context.Context, query string, limit int) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if limit < 1 {
		limit = 10
	}

	result := make([]domain.Medicine, 0, limit)
	for _, m := range s.medicinesByID {
		if !m.Active {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(m.Name), query) &&
			!strings.Contains(strings.ToLower(m.GenericName), query) &&
			!strings.Contains(strings.ToLower(m.SKU), query) {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		return cmpString(a.Name, b.Name)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	medicine.SKU = strings.ToUpper(strings.TrimSpace(medicine.SKU))
	medicine.Name = strings.TrimSpace(medicine.Name)
	if medicine.SKU == "" || medicine.Name == "" || medicine.SellingPrice < 1 {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.medicineIDBySKU[medicine.SKU]; exists {
		return nil, store.ErrConflict
	}
	if medicine.ID == "" {
		medicine.ID = xid.New("med")
	}
	now := time.Now().UTC()
	if medicine.CreatedAt.IsZero() {
		medicine.CreatedAt = now
	}
	medicine.UpdatedAt = now
	medicine.TotalQuantity = 0
	medicine.Active = true

	s.medicinesByID[medicine.ID] = medicine
	s.medicineIDBySKU[medicine.SKU] = medicine.ID
	created := medicine
	return &created, nil
}

func (s *Store) GetMedicineByID(_ context.Context, id string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicine, exists := s.medicinesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMedicine := medicine
	return &copyMedicine, nil
}

func (s *Store) GetMedicineBySKU(_ context.Context, sku string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.medicineIDBySKU[strings.ToUpper(strings.TrimSpace(sku))]
	if !exists {
		return nil, store.ErrNotFound
	}
	medicine := s.medicinesByID[id]
	copyMedicine := medicine
	return &copyMedicine, nil
}

func (s *Store) UpdateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.medicinesByID[medicine.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(medicine.Name) == "" || medicine.SellingPrice < 1 {
		return nil, store.ErrInvalidSale
	}

	// SKU and stock aggregates are not editable through update.
	medicine.SKU = current.SKU
	medicine.TotalQuantity = current.TotalQuantity
	medicine.CreatedAt = current.CreatedAt
	medicine.UpdatedAt = time.Now().UTC()

	s.medicinesByID[medicine.ID] = medicine
	updated := medicine
	return &updated, nil
}

func (s *Store) ListLowStockMedicines(_ context.Context) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Medicine, 0, 16)
	for _, m := range s.medicinesByID {
		if !m.Active {
			continue
		}
		if m.TotalQuantity <= m.ReorderLevel {
			result = append(result, m)
		}
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity - b.TotalQuantity
		}
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.Batch) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch.BatchNumber = strings.TrimSpace(batch.BatchNumber)
	if batch.MedicineID == "" || batch.BatchNumber == "" || batch.Quantity < 1 {
		return nil, store.ErrInvalidSale
	}
	medicine, exists := s.medicinesByID[batch.MedicineID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !batch.ExpiryDate.After(batch.ManufactureDate) {
		return nil, store.ErrInvalidSale
	}
	for _, existing := range s.batchesByMedicine[batch.MedicineID] {
		if existing.BatchNumber == batch.BatchNumber {
			return nil, store.ErrConflict
		}
	}

	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	if batch.UnitCost < 1 {
		batch.UnitCost = medicine.UnitCost
	}
	if batch.SellingPriceAtReceipt < 1 {
		batch.SellingPriceAtReceipt = medicine.SellingPrice
	}
	batch.RemainingQuantity = batch.Quantity
	batch.Active = true

	s.batchesByMedicine[batch.MedicineID] = append(s.batchesByMedicine[batch.MedicineID], batch)
	medicine.TotalQuantity += batch.Quantity
	medicine.UpdatedAt = time.Now().UTC()
	s.medicinesByID[batch.MedicineID] = medicine

	created := batch
	return &created, nil
}

func (s *Store) ListBatches(_ context.Context, medicineID string, includeInactive bool) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.medicinesByID[medicineID]; !exists {
		return nil, store.ErrNotFound
	}

	batches := s.batchesByMedicine[medicineID]
	result := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if !includeInactive && !b.Active {
			continue
		}
		result = append(result, b)
	}
	slices.SortFunc(result, compareBatchFEFO)
	return result, nil
}

func (s *Store) ListBatchesExpiringWithin(_ context.Context, days int) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if days < 1 {
		days = 90
	}
	today := nowDateUTC(time.Now().UTC())
	horizon := today.AddDate(0, 0, days)

	result := make([]domain.Batch, 0, 32)
	for _, batches := range s.batchesByMedicine {
		for _, b := range batches {
			if !b.Active || b.RemainingQuantity < 1 {
				continue
			}
			if b.ExpiryDate.After(horizon) {
				continue
			}
			result = append(result, b)
		}
	}
	slices.SortFunc(result, compareBatchFEFO)
	return result, nil
}

func (s *Store) DeactivateBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for medicineID, batches := range s.batchesByMedicine {
		for i := range batches {
			if batches[i].ID != batchID {
				continue
			}
			if !batches[i].Active {
				return nil, store.ErrInvalidSale
			}
			batches[i].Active = false
			medicine := s.medicinesByID[medicineID]
			medicine.TotalQuantity -= batches[i].RemainingQuantity
			medicine.UpdatedAt = time.Now().UTC()
			s.medicinesByID[medicineID] = medicine
			retired := batches[i]
			return &retired, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AdjustStock(_ context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if adjustment.BatchID == "" || adjustment.Quantity == 0 {
		return nil, store.ErrInvalidSale
	}

	for medicineID, batches := range s.batchesByMedicine {
		for i := range batches {
			if batches[i].ID != adjustment.BatchID {
				continue
			}
			next := batches[i].RemainingQuantity + adjustment.Quantity
			if next < 0 {
				return nil, store.ErrInsufficientStock
			}
			if next > batches[i].Quantity {
				return nil, store.ErrInvalidSale
			}
			batches[i].RemainingQuantity = next

			medicine := s.medicinesByID[medicineID]
			if batches[i].Active {
				medicine.TotalQuantity += adjustment.Quantity
			}
			medicine.UpdatedAt = time.Now().UTC()
			s.medicinesByID[medicineID] = medicine

			if adjustment.ID == "" {
				adjustment.ID = xid.New("adj")
			}
			if adjustment.CreatedAt.IsZero() {
				adjustment.CreatedAt = time.Now().UTC()
			}
			adjustment.MedicineID = medicineID
			s.adjustments = append(s.adjustments, adjustment)
			created := adjustment
			return &created, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListStockAdjustments(_ context.Context, medicineID string, limit int) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockAdjustment, 0, 32)
	for _, adj := range s.adjustments {
		if medicineID != "" && adj.MedicineID != medicineID {
			continue
		}
		result = append(result, adj)
	}
	slices.SortFunc(result, func(a, b domain.StockAdjustment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CreateSale is the store's atomic unit of work for one sale: FEFO batch
// allocation, pricing, invoice numbering, ledger updates and prescription
// stamping all happen under one lock, and nothing is written until every
// cart line has allocated.
func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.CartItems) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidSale)
	}
	saleDate := draft.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}

	var customer *domain.Customer
	if draft.CustomerID != "" {
		c, exists := s.customersByID[draft.CustomerID]
		if !exists {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, draft.CustomerID)
		}
		customer = &c
	}
	var prescription *domain.Prescription
	if draft.PrescriptionID != "" {
		p, exists := s.prescriptionsByID[draft.PrescriptionID]
		if !exists {
			return nil, fmt.Errorf("%w: prescription %s", store.ErrNotFound, draft.PrescriptionID)
		}
		prescription = p
	}

	// Allocate against scratch copies; the live maps are untouched until
	// every line has a complete plan.
	scratchBatches := make(map[string][]domain.Batch)
	scratchMedicines := make(map[string]domain.Medicine)

	saleID := draft.ID
	if saleID == "" {
		saleID = xid.New("sale")
	}

	items := make([]domain.SaleItem, 0, len(draft.CartItems))
	subtotal := int64(0)
	for _, line := range draft.CartItems {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidSale)
		}
		medicine, exists := s.medicinesByID[line.MedicineID]
		if !exists || !medicine.Active {
			return nil, fmt.Errorf("%w: medicine %s", store.ErrNotFound, line.MedicineID)
		}
		if _, ok := scratchMedicines[line.MedicineID]; !ok {
			scratchMedicines[line.MedicineID] = medicine
			scratchBatches[line.MedicineID] = slices.Clone(s.batchesByMedicine[line.MedicineID])
		}

		plan, err := allocation.Plan(medicine, scratchBatches[line.MedicineID], line.Quantity, saleDate)
		if err != nil {
			return nil, err
		}
		for _, alloc := range plan {
			batches := scratchBatches[line.MedicineID]
			for i := range batches {
				if batches[i].ID == alloc.Batch.ID {
					batches[i].RemainingQuantity -= alloc.Quantity
					break
				}
			}
			item := domain.SaleItem{
				ID:         xid.New("sitem"),
				SaleID:     saleID,
				MedicineID: medicine.ID,
				BatchID:    alloc.Batch.ID,
				Quantity:   alloc.Quantity,
				UnitPrice:  medicine.SellingPrice,
				UnitCost:   alloc.Batch.UnitCost,
			}
			item.TotalPrice = int64(item.Quantity) * item.UnitPrice
			item.TotalCost = int64(item.Quantity) * item.UnitCost
			items = append(items, item)
			subtotal += item.TotalPrice
		}

		scratch := scratchMedicines[line.MedicineID]
		scratch.TotalQuantity -= line.Quantity
		scratchMedicines[line.MedicineID] = scratch
	}

	totals := pricing.Compute(subtotal, draft.DiscountPercent, draft.TaxPercent, draft.AmountPaid)
	invoiceNumber := s.nextDocNumber("INV", saleDate, 5)

	sale := &domain.Sale{
		ID:              saleID,
		InvoiceNumber:   invoiceNumber,
		CustomerID:      draft.CustomerID,
		PrescriptionID:  draft.PrescriptionID,
		Subtotal:        totals.Subtotal,
		DiscountPercent: draft.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		TaxPercent:      draft.TaxPercent,
		TaxAmount:       totals.TaxAmount,
		TotalAmount:     totals.TotalAmount,
		AmountPaid:      draft.AmountPaid,
		ChangeAmount:    totals.ChangeAmount,
		PaymentMethod:   draft.PaymentMethod,
		Status:          domain.SaleStatusCompleted,
		Notes:           draft.Notes,
		ServedBy:        draft.ServedBy,
		SaleDate:        saleDate,
		Items:           items,
	}

	// All lines allocated; apply the scratch state.
	for medicineID, batches := range scratchBatches {
		s.batchesByMedicine[medicineID] = batches
	}
	for medicineID, medicine := range scratchMedicines {
		medicine.UpdatedAt = saleDate
		s.medicinesByID[medicineID] = medicine
	}
	if customer != nil {
		customer.LoyaltyPoints += pricing.LoyaltyPoints(sale.TotalAmount)
		customer.TotalPurchases += sale.TotalAmount
		s.customersByID[customer.ID] = *customer
	}
	if prescription != nil {
		prescription.Status = domain.PrescriptionStatusFilled
		prescription.FilledBy = draft.ServedBy
		filledAt := saleDate
		prescription.FilledAt = &filledAt
	}

	s.salesByID[sale.ID] = sale
	s.saleIDByInvoice[sale.InvoiceNumber] = sale.ID
	return cloneSale(sale), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) GetSaleByInvoiceNumber(_ context.Context, invoiceNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.saleIDByInvoice[invoiceNumber]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(s.salesByID[id]), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if !from.IsZero() && sale.SaleDate.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.SaleDate.Before(to) {
			continue
		}
		if status != "" && sale.Status != status {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.SaleDate.Equal(b.SaleDate) {
			return cmpString(b.InvoiceNumber, a.InvoiceNumber)
		}
		if a.SaleDate.After(b.SaleDate) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CreateReturn reverses part or all of a completed sale. Cumulative returned
// quantity per sale item never exceeds the original quantity; restocked lines
// go back to the batch they were allocated from.
func (s *Store) CreateReturn(_ context.Context, draft domain.ReturnDraft) (*domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.SaleID == "" || len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: return needs a sale and at least one line", store.ErrInvalidSale)
	}
	sale, exists := s.salesByID[draft.SaleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, draft.SaleID)
	}
	if sale.Status != domain.SaleStatusCompleted && sale.Status != domain.SaleStatusPartiallyRefunded {
		return nil, fmt.Errorf("%w: sale %s is %s", store.ErrInvalidSale, sale.ID, sale.Status)
	}

	itemsByID := make(map[string]domain.SaleItem, len(sale.Items))
	for _, item := range sale.Items {
		itemsByID[item.ID] = item
	}
	returnedSoFar := s.returnedQtyLocked(draft.SaleID)

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	returnID := draft.ID
	if returnID == "" {
		returnID = xid.New("ret")
	}

	refundTotal := int64(0)
	lines := make([]domain.ReturnItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: return quantity must be at least 1", store.ErrInvalidSale)
		}
		saleItem, ok := itemsByID[line.SaleItemID]
		if !ok {
			return nil, fmt.Errorf("%w: sale item %s", store.ErrNotFound, line.SaleItemID)
		}
		if returnedSoFar[line.SaleItemID]+line.Quantity > saleItem.Quantity {
			return nil, fmt.Errorf("%w: return exceeds sold quantity for item %s", store.ErrInvalidSale, line.SaleItemID)
		}
		returnedSoFar[line.SaleItemID] += line.Quantity

		item := domain.ReturnItem{
			ID:          xid.New("ritem"),
			ReturnID:    returnID,
			SaleItemID:  saleItem.ID,
			MedicineID:  saleItem.MedicineID,
			BatchID:     saleItem.BatchID,
			Quantity:    line.Quantity,
			UnitPrice:   saleItem.UnitPrice,
			TotalRefund: int64(line.Quantity) * saleItem.UnitPrice,
			Restock:     line.Restock,
		}
		refundTotal += item.TotalRefund
		lines = append(lines, item)
	}

	// Validation passed; mutate.
	for _, item := range lines {
		if !item.Restock {
			continue
		}
		batchActive := false
		batches := s.batchesByMedicine[item.MedicineID]
		for i := range batches {
			if batches[i].ID == item.BatchID {
				batches[i].RemainingQuantity += item.Quantity
				batchActive = batches[i].Active
				break
			}
		}
		s.batchesByMedicine[item.MedicineID] = batches
		// The aggregate tracks remaining quantity across active batches
		// only; restock into a deactivated batch must not inflate it.
		if !batchActive {
			continue
		}
		medicine := s.medicinesByID[item.MedicineID]
		medicine.TotalQuantity += item.Quantity
		medicine.UpdatedAt = createdAt
		s.medicinesByID[item.MedicineID] = medicine
	}

	fullyReturned := true
	for _, saleItem := range sale.Items {
		if returnedSoFar[saleItem.ID] < saleItem.Quantity {
			fullyReturned = false
			break
		}
	}
	if fullyReturned {
		sale.Status = domain.SaleStatusRefunded
	} else {
		sale.Status = domain.SaleStatusPartiallyRefunded
	}

	ret := &domain.Return{
		ID:           returnID,
		ReturnNumber: s.nextDocNumber("RET", createdAt, 4),
		SaleID:       sale.ID,
		CustomerID:   sale.CustomerID,
		Reason:       draft.Reason,
		RefundMethod: draft.RefundMethod,
		RefundAmount: refundTotal,
		Notes:        draft.Notes,
		ProcessedBy:  draft.ProcessedBy,
		CreatedAt:    createdAt,
		Items:        lines,
	}
	s.returnsByID[ret.ID] = ret
	return cloneReturn(ret), nil
}

func (s *Store) ListReturnsBySale(_ context.Context, saleID string) ([]domain.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Return, 0, 4)
	for _, ret := range s.returnsByID {
		if ret.SaleID != saleID {
			continue
		}
		result = append(result, *cloneReturn(ret))
	}
	slices.SortFunc(result, func(a, b domain.Return) int {
		return cmpString(a.ReturnNumber, b.ReturnNumber)
	})
	return result, nil
}

func (s *Store) GetReturnedQtyBySale(_ context.Context, saleID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.returnedQtyLocked(saleID), nil
}

func (s *Store) returnedQtyLocked(saleID string) map[string]int {
	result := make(map[string]int)
	for _, ret := range s.returnsByID {
		if ret.SaleID != saleID {
			continue
		}
		for _, item := range ret.Items {
			result[item.SaleItemID] += item.Quantity
		}
	}
	return result
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Phone = strings.TrimSpace(customer.Phone)
	if strings.TrimSpace(customer.FirstName) == "" || customer.Phone == "" {
		return nil, store.ErrInvalidSale
	}
	for _, existing := range s.customersByID {
		if existing.Phone == customer.Phone {
			return nil, store.ErrConflict
		}
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	if customer.Code == "" {
		customer.Code = s.nextDocNumber("CUST", customer.CreatedAt, 3)
	}
	customer.Active = true
	customer.LoyaltyPoints = 0
	customer.TotalPurchases = 0

	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		result = append(result, customer)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Code, b.Code)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidSale
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	if supplier.Code == "" {
		s.docCounters["SUP"]++
		supplier.Code = fmt.Sprintf("SUP-%04d", s.docCounters["SUP"])
	}
	supplier.Active = true

	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		result = append(result, supplier)
	}
	slices.SortFunc(result, func(a, b domain.Supplier) int {
		return cmpString(a.Code, b.Code)
	})
	return result, nil
}

func (s *Store) CreatePrescription(_ context.Context, prescription domain.Prescription) (*domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prescription.CustomerID == "" || len(prescription.Items) == 0 {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.customersByID[prescription.CustomerID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, item := range prescription.Items {
		if item.MedicineID == "" || item.QuantityPrescribed < 1 {
			return nil, store.ErrInvalidSale
		}
		if _, exists := s.medicinesByID[item.MedicineID]; !exists {
			return nil, fmt.Errorf("%w: medicine %s", store.ErrNotFound, item.MedicineID)
		}
	}

	if prescription.ID == "" {
		prescription.ID = xid.New("rx")
	}
	if prescription.CreatedAt.IsZero() {
		prescription.CreatedAt = time.Now().UTC()
	}
	if prescription.PrescriptionNumber == "" {
		prescription.PrescriptionNumber = s.nextDocNumber("RX", prescription.CreatedAt, 4)
	}
	prescription.Status = domain.PrescriptionStatusPending
	prescription.FilledBy = ""
	prescription.FilledAt = nil

	stored := clonePrescription(&prescription)
	s.prescriptionsByID[prescription.ID] = stored
	return clonePrescription(stored), nil
}

func (s *Store) GetPrescriptionByID(_ context.Context, id string) (*domain.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prescription, exists := s.prescriptionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return clonePrescription(prescription), nil
}

func (s *Store) ListPrescriptions(_ context.Context, customerID string, status string, limit int) ([]domain.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Prescription, 0, 16)
	for _, prescription := range s.prescriptionsByID {
		if customerID != "" && prescription.CustomerID != customerID {
			continue
		}
		if status != "" && prescription.Status != status {
			continue
		}
		result = append(result, *clonePrescription(prescription))
	}
	slices.SortFunc(result, func(a, b domain.Prescription) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.PrescriptionNumber, b.PrescriptionNumber)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetDailySalesReport(_ context.Context, day time.Time) (domain.DailySalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := nowDateUTC(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	report := domain.DailySalesReport{Date: dayStart.Format("2006-01-02")}
	for _, sale := range s.salesByID {
		if sale.SaleDate.Before(dayStart) || !sale.SaleDate.Before(dayEnd) {
			continue
		}
		if sale.Status == domain.SaleStatusCancelled || sale.Status == domain.SaleStatusPending {
			continue
		}
		report.SaleCount++
		report.GrossSales += sale.Subtotal
		report.DiscountTotal += sale.DiscountAmount
		report.TaxTotal += sale.TaxAmount
		report.NetSales += sale.TotalAmount
		for _, item := range sale.Items {
			report.EstimatedMargin += item.TotalPrice - item.TotalCost
		}
	}
	for _, ret := range s.returnsByID {
		if ret.CreatedAt.Before(dayStart) || !ret.CreatedAt.Before(dayEnd) {
			continue
		}
		report.RefundTotal += ret.RefundAmount
	}
	return report, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// nextDocNumber increments the per-(prefix, date) counter under the store
// lock and formats the document number, e.g. INV-20260830-00001. Callers must
// hold s.mu.
func (s *Store) nextDocNumber(prefix string, at time.Time, pad int) string {
	dateStr := at.UTC().Format("20060102")
	key := prefix + "-" + dateStr
	s.docCounters[key]++
	return fmt.Sprintf("%s-%s-%0*d", prefix, dateStr, pad, s.docCounters[key])
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func compareBatchFEFO(a domain.Batch, b domain.Batch) int {
	if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
		return c
	}
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return cmpString(a.ID, b.ID)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}

func cloneReturn(src *domain.Return) *domain.Return {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.ReturnItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}

func clonePrescription(src *domain.Prescription) *domain.Prescription {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.PrescriptionItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.FilledAt != nil {
		filledAt := *src.FilledAt
		dup.FilledAt = &filledAt
	}
	return &dup
}
