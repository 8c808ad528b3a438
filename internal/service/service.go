package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"apotekku/backend/internal/alerts"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	alerts     *alerts.Engine
	taxPercent float64
}

func New(repo store.Repository, alertEngine *alerts.Engine, taxPercent float64) *Service {
	if alertEngine == nil {
		alertEngine = alerts.NewEngine(nil, 0, 0)
	}
	if taxPercent < 0 || taxPercent > 100 {
		taxPercent = 0
	}

	return &Service{
		repo:       repo,
		alerts:     alertEngine,
		taxPercent: taxPercent,
	}
}

func (s *Service) ListMedicines(ctx context.Context, activeOnly bool) ([]domain.Medicine, error) {
	return s.repo.ListMedicines(ctx, activeOnly)
}

func (s *Service) SearchMedicines(ctx context.Context, query string, limit int) ([]domain.Medicine, error) {
	return s.repo.SearchMedicines(ctx, query, limit)
}

func (s *Service) CreateMedicine(ctx context.Context, req domain.MedicineCreateRequest) (domain.Medicine, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist)
	if err != nil {
		return domain.Medicine{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Form = strings.ToLower(strings.TrimSpace(req.Form))
	if req.SKU == "" || req.Name == "" || req.Form == "" {
		return domain.Medicine{}, store.ErrInvalidSale
	}
	if req.SellingPrice < 1 || req.UnitCost < 0 || req.ReorderLevel < 0 {
		return domain.Medicine{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateMedicine(ctx, domain.Medicine{
		SKU:                  req.SKU,
		Name:                 req.Name,
		GenericName:          strings.TrimSpace(req.GenericName),
		Category:             strings.TrimSpace(req.Category),
		Manufacturer:         strings.TrimSpace(req.Manufacturer),
		Form:                 req.Form,
		Strength:             strings.TrimSpace(req.Strength),
		UnitCost:             req.UnitCost,
		SellingPrice:         req.SellingPrice,
		ReorderLevel:         req.ReorderLevel,
		RequiresPrescription: req.RequiresPrescription,
	})
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAction(actor, "medicine_create", created.ID, fmt.Sprintf("sku=%s,price=%d", created.SKU, created.SellingPrice))
	return *created, nil
}

func (s *Service) GetMedicine(ctx context.Context, id string) (domain.Medicine, error) {
	medicine, err := s.repo.GetMedicineByID(ctx, id)
	if err != nil {
		return domain.Medicine{}, err
	}
	return *medicine, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, id string, req domain.MedicineUpdateRequest) (domain.Medicine, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist)
	if err != nil {
		return domain.Medicine{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Medicine{}, store.ErrInvalidSale
	}

	existing, err := s.repo.GetMedicineByID(ctx, id)
	if err != nil {
		return domain.Medicine{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Medicine{}, store.ErrInvalidSale
		}
		updated.Name = name
	}
	if req.GenericName != nil {
		updated.GenericName = strings.TrimSpace(*req.GenericName)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Manufacturer != nil {
		updated.Manufacturer = strings.TrimSpace(*req.Manufacturer)
	}
	if req.SellingPrice != nil {
		if *req.SellingPrice < 1 {
			return domain.Medicine{}, store.ErrInvalidSale
		}
		updated.SellingPrice = *req.SellingPrice
	}
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return domain.Medicine{}, store.ErrInvalidSale
		}
		updated.ReorderLevel = *req.ReorderLevel
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateMedicine(ctx, updated)
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAction(actor, "medicine_update", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.SellingPrice))
	return *saved, nil
}

func (s *Service) LowStockMedicines(ctx context.Context) ([]domain.Medicine, error) {
	return s.repo.ListLowStockMedicines(ctx)
}

func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchReceiveRequest) (domain.Batch, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist)
	if err != nil {
		return domain.Batch{}, err
	}

	req.BatchNumber = strings.TrimSpace(req.BatchNumber)
	if req.MedicineID == "" || req.BatchNumber == "" || req.Quantity < 1 {
		return domain.Batch{}, store.ErrInvalidSale
	}
	manufactureDate, err := parseDate(req.ManufactureDate)
	if err != nil {
		return domain.Batch{}, store.ErrInvalidSale
	}
	expiryDate, err := parseDate(req.ExpiryDate)
	if err != nil {
		return domain.Batch{}, store.ErrInvalidSale
	}
	if !expiryDate.After(manufactureDate) {
		return domain.Batch{}, fmt.Errorf("%w: expiry date must be after manufacture date", store.ErrInvalidSale)
	}

	created, err := s.repo.CreateBatch(ctx, domain.Batch{
		MedicineID:      req.MedicineID,
		BatchNumber:     req.BatchNumber,
		SupplierID:      strings.TrimSpace(req.SupplierID),
		Quantity:        req.Quantity,
		UnitCost:        req.UnitCost,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.logAction(actor, "batch_receive", created.ID, fmt.Sprintf("medicine=%s,qty=%d,expiry=%s", created.MedicineID, created.Quantity, req.ExpiryDate))
	return *created, nil
}

func (s *Service) ListBatches(ctx context.Context, medicineID string, includeInactive bool) ([]domain.Batch, error) {
	if strings.TrimSpace(medicineID) == "" {
		return nil, store.ErrInvalidSale
	}
	return s.repo.ListBatches(ctx, medicineID, includeInactive)
}

func (s *Service) NearExpiryBatches(ctx context.Context, days int) ([]domain.Batch, error) {
	if days < 1 {
		days = s.alerts.NearExpiryDays()
	}
	return s.repo.ListBatchesExpiringWithin(ctx, days)
}

func (s *Service) DeactivateBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist)
	if err != nil {
		return domain.Batch{}, err
	}
	if strings.TrimSpace(batchID) == "" {
		return domain.Batch{}, store.ErrInvalidSale
	}

	retired, err := s.repo.DeactivateBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	s.logAction(actor, "batch_deactivate", retired.ID, fmt.Sprintf("medicine=%s,remaining=%d", retired.MedicineID, retired.RemainingQuantity))
	return *retired, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockAdjustment, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist, domain.RoleManager)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	req.Reason = strings.ToLower(strings.TrimSpace(req.Reason))
	if req.BatchID == "" || req.Quantity == 0 || !isAdjustmentReason(req.Reason) {
		return domain.StockAdjustment{}, store.ErrInvalidSale
	}

	created, err := s.repo.AdjustStock(ctx, domain.StockAdjustment{
		BatchID:    req.BatchID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		Notes:      strings.TrimSpace(req.Notes),
		AdjustedBy: actor.Username,
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	s.logAction(actor, "stock_adjust", created.ID, fmt.Sprintf("batch=%s,qty=%d,reason=%s", created.BatchID, created.Quantity, created.Reason))
	return *created, nil
}

func (s *Service) ListStockAdjustments(ctx context.Context, medicineID string, limit int) ([]domain.StockAdjustment, error) {
	return s.repo.ListStockAdjustments(ctx, medicineID, limit)
}

// CreateSale validates the cart and hands the store one draft to execute
// atomically. Validation failures surface before any stock moves; the store
// guarantees either the whole sale lands or nothing does.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("authentication required")
	}

	lines, err := normalizeCartLines(req.CartItems)
	if err != nil {
		return domain.Sale{}, err
	}
	if len(lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidSale)
	}
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidSale, req.PaymentMethod)
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return domain.Sale{}, fmt.Errorf("%w: discount must be between 0 and 100", store.ErrInvalidSale)
	}
	if req.AmountPaid < 0 {
		return domain.Sale{}, store.ErrInvalidSale
	}

	needsPrescription := false
	for _, line := range lines {
		medicine, err := s.repo.GetMedicineByID(ctx, line.MedicineID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("%w: medicine %s", store.ErrNotFound, line.MedicineID)
			}
			return domain.Sale{}, err
		}
		if medicine.RequiresPrescription {
			needsPrescription = true
		}
	}
	if needsPrescription && req.PrescriptionID == "" {
		return domain.Sale{}, fmt.Errorf("%w: prescription required for one or more cart items", store.ErrInvalidSale)
	}
	if req.PrescriptionID != "" {
		prescription, err := s.repo.GetPrescriptionByID(ctx, req.PrescriptionID)
		if err != nil {
			return domain.Sale{}, err
		}
		if prescription.Status != domain.PrescriptionStatusPending && prescription.Status != domain.PrescriptionStatusPartial {
			return domain.Sale{}, fmt.Errorf("%w: prescription %s is %s", store.ErrInvalidSale, prescription.ID, prescription.Status)
		}
		if !prescription.ValidUntil.IsZero() && prescription.ValidUntil.Before(dateOnly(time.Now().UTC())) {
			return domain.Sale{}, fmt.Errorf("%w: prescription %s has expired", store.ErrInvalidSale, prescription.ID)
		}
		if req.CustomerID != "" && prescription.CustomerID != req.CustomerID {
			return domain.Sale{}, fmt.Errorf("%w: prescription belongs to a different customer", store.ErrInvalidSale)
		}
	}

	sale, err := s.repo.CreateSale(ctx, domain.SaleDraft{
		ID:              xid.New("sale"),
		CartItems:       lines,
		CustomerID:      strings.TrimSpace(req.CustomerID),
		PrescriptionID:  strings.TrimSpace(req.PrescriptionID),
		PaymentMethod:   req.PaymentMethod,
		AmountPaid:      req.AmountPaid,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      s.taxPercent,
		Notes:           strings.TrimSpace(req.Notes),
		ServedBy:        actor.Username,
		SaleDate:        time.Now().UTC(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAction(actor, "sale_create", sale.ID, fmt.Sprintf("invoice=%s,total=%d,payment=%s", sale.InvoiceNumber, sale.TotalAmount, sale.PaymentMethod))
	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByInvoiceNumber(ctx, strings.TrimSpace(invoiceNumber))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, fromDate string, toDate string, status string, limit int) ([]domain.Sale, error) {
	var from, to time.Time
	var err error
	if strings.TrimSpace(fromDate) != "" {
		from, err = parseDate(fromDate)
		if err != nil {
			return nil, store.ErrInvalidSale
		}
	}
	if strings.TrimSpace(toDate) != "" {
		to, err = parseDate(toDate)
		if err != nil {
			return nil, store.ErrInvalidSale
		}
		// Inclusive end date.
		to = to.AddDate(0, 0, 1)
	}
	return s.repo.ListSales(ctx, from, to, strings.TrimSpace(status), limit)
}

// ProcessReturn validates a return request against the original sale and runs
// it through the store's unit of work. The per-item over-return guard lives in
// the store so it also holds under concurrent returns.
func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (domain.Return, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist, domain.RoleManager)
	if err != nil {
		return domain.Return{}, err
	}

	if strings.TrimSpace(req.SaleID) == "" || len(req.Items) == 0 {
		return domain.Return{}, fmt.Errorf("%w: return needs a sale and at least one line", store.ErrInvalidSale)
	}
	req.Reason = strings.ToLower(strings.TrimSpace(req.Reason))
	if !isReturnReason(req.Reason) {
		return domain.Return{}, fmt.Errorf("%w: unsupported return reason %q", store.ErrInvalidSale, req.Reason)
	}
	req.RefundMethod = strings.ToLower(strings.TrimSpace(req.RefundMethod))
	if req.RefundMethod == "" {
		req.RefundMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.RefundMethod) {
		return domain.Return{}, fmt.Errorf("%w: unsupported refund method %q", store.ErrInvalidSale, req.RefundMethod)
	}
	for _, line := range req.Items {
		if strings.TrimSpace(line.SaleItemID) == "" || line.Quantity < 1 {
			return domain.Return{}, fmt.Errorf("%w: return quantity must be at least 1", store.ErrInvalidSale)
		}
	}

	ret, err := s.repo.CreateReturn(ctx, domain.ReturnDraft{
		ID:           xid.New("ret"),
		SaleID:       req.SaleID,
		Reason:       req.Reason,
		RefundMethod: req.RefundMethod,
		Notes:        strings.TrimSpace(req.Notes),
		ProcessedBy:  actor.Username,
		CreatedAt:    time.Now().UTC(),
		Items:        req.Items,
	})
	if err != nil {
		return domain.Return{}, err
	}

	s.logAction(actor, "return_process", ret.ID, fmt.Sprintf("sale=%s,refund=%d,reason=%s", ret.SaleID, ret.RefundAmount, ret.Reason))
	return *ret, nil
}

func (s *Service) ListReturns(ctx context.Context, saleID string) ([]domain.Return, error) {
	if strings.TrimSpace(saleID) == "" {
		return nil, store.ErrInvalidSale
	}
	return s.repo.ListReturnsBySale(ctx, saleID)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Customer{}, fmt.Errorf("authentication required")
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.FirstName == "" || req.Phone == "" {
		return domain.Customer{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		FirstName: req.FirstName,
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     req.Phone,
		Email:     strings.TrimSpace(req.Email),
		Allergies: strings.TrimSpace(req.Allergies),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAction(actor, "customer_create", created.ID, fmt.Sprintf("code=%s", created.Code))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, limit)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAction(actor, "supplier_create", created.ID, fmt.Sprintf("code=%s,name=%s", created.Code, created.Name))
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePrescription(ctx context.Context, req domain.PrescriptionCreateRequest) (domain.Prescription, error) {
	actor, err := requireRole(ctx, domain.RolePharmacist)
	if err != nil {
		return domain.Prescription{}, err
	}

	req.DoctorName = strings.TrimSpace(req.DoctorName)
	if req.CustomerID == "" || req.DoctorName == "" || len(req.Items) == 0 {
		return domain.Prescription{}, store.ErrInvalidSale
	}
	prescriptionDate, err := parseDate(req.PrescriptionDate)
	if err != nil {
		return domain.Prescription{}, store.ErrInvalidSale
	}
	validUntil, err := parseDate(req.ValidUntil)
	if err != nil {
		return domain.Prescription{}, store.ErrInvalidSale
	}
	if validUntil.Before(prescriptionDate) {
		return domain.Prescription{}, fmt.Errorf("%w: valid_until precedes prescription date", store.ErrInvalidSale)
	}
	for _, item := range req.Items {
		if item.MedicineID == "" || item.QuantityPrescribed < 1 {
			return domain.Prescription{}, store.ErrInvalidSale
		}
	}

	created, err := s.repo.CreatePrescription(ctx, domain.Prescription{
		CustomerID:       req.CustomerID,
		DoctorName:       req.DoctorName,
		DoctorLicense:    strings.TrimSpace(req.DoctorLicense),
		PrescriptionDate: prescriptionDate,
		ValidUntil:       validUntil,
		Notes:            strings.TrimSpace(req.Notes),
		Items:            req.Items,
	})
	if err != nil {
		return domain.Prescription{}, err
	}

	s.logAction(actor, "prescription_create", created.ID, fmt.Sprintf("number=%s,customer=%s", created.PrescriptionNumber, created.CustomerID))
	return *created, nil
}

func (s *Service) GetPrescription(ctx context.Context, id string) (domain.Prescription, error) {
	prescription, err := s.repo.GetPrescriptionByID(ctx, id)
	if err != nil {
		return domain.Prescription{}, err
	}
	return *prescription, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, customerID string, status string, limit int) ([]domain.Prescription, error) {
	return s.repo.ListPrescriptions(ctx, strings.TrimSpace(customerID), strings.ToLower(strings.TrimSpace(status)), limit)
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	day := time.Now().UTC()
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDate(date)
		if err != nil {
			return domain.DailySalesReport{}, store.ErrInvalidSale
		}
		day = parsed
	}
	return s.repo.GetDailySalesReport(ctx, day)
}

func (s *Service) StockAlerts(ctx context.Context) (domain.StockAlertResponse, error) {
	lowStock, err := s.repo.ListLowStockMedicines(ctx)
	if err != nil {
		return domain.StockAlertResponse{}, err
	}
	nearExpiry, err := s.repo.ListBatchesExpiringWithin(ctx, s.alerts.NearExpiryDays())
	if err != nil {
		return domain.StockAlertResponse{}, err
	}

	medicines := make(map[string]domain.Medicine, len(nearExpiry))
	for _, b := range nearExpiry {
		if _, ok := medicines[b.MedicineID]; ok {
			continue
		}
		medicine, err := s.repo.GetMedicineByID(ctx, b.MedicineID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return domain.StockAlertResponse{}, err
		}
		medicines[b.MedicineID] = *medicine
	}

	return *s.alerts.Build(ctx, lowStock, nearExpiry, medicines), nil
}

func (s *Service) logAction(actor domain.Actor, action string, entityID string, detail string) {
	log.Printf("[service] %s by=%s entity=%s %s", action, actor.Username, entityID, detail)
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required")
	}
	if actor.Role == domain.RoleAdmin {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%s role required", strings.Join(roles, " or "))
}

// normalizeCartLines merges duplicate medicine lines, preserving the order in
// which each medicine first appears. Any malformed line rejects the whole
// cart; a sale never silently drops part of what was submitted.
func normalizeCartLines(items []domain.CartLine) ([]domain.CartLine, error) {
	index := make(map[string]int, len(items))
	normalized := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		if item.MedicineID == "" {
			return nil, fmt.Errorf("%w: cart line missing medicine id", store.ErrInvalidSale)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for %s must be at least 1", store.ErrInvalidSale, item.MedicineID)
		}
		if i, ok := index[item.MedicineID]; ok {
			normalized[i].Quantity += item.Quantity
			continue
		}
		index[item.MedicineID] = len(normalized)
		normalized = append(normalized, item)
	}
	return normalized, nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentMobile, domain.PaymentInsurance, domain.PaymentCredit:
		return true
	default:
		return false
	}
}

func isAdjustmentReason(reason string) bool {
	switch reason {
	case domain.AdjustmentReasonDamaged, domain.AdjustmentReasonExpired, domain.AdjustmentReasonLost,
		domain.AdjustmentReasonCorrection, domain.AdjustmentReasonOther:
		return true
	default:
		return false
	}
}

func isReturnReason(reason string) bool {
	switch reason {
	case domain.ReturnReasonExpired, domain.ReturnReasonDamaged, domain.ReturnReasonWrongItem,
		domain.ReturnReasonCustomerRequest, domain.ReturnReasonOther:
		return true
	default:
		return false
	}
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
