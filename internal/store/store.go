package store

import (
	"context"
	"errors"
	"time"

	"apotekku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrConflict          = errors.New("conflict")
)

type Repository interface {
	ListMedicines(ctx context.Context, activeOnly bool) ([]domain.Medicine, error)
	SearchMedicines(ctx context.Context, query string, limit int) ([]domain.Medicine, error)
	CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	GetMedicineByID(ctx context.Context, id string) (*domain.Medicine, error)
	GetMedicineBySKU(ctx context.Context, sku string) (*domain.Medicine, error)
	UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	ListLowStockMedicines(ctx context.Context) ([]domain.Medicine, error)

	CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error)
	ListBatches(ctx context.Context, medicineID string, includeInactive bool) ([]domain.Batch, error)
	ListBatchesExpiringWithin(ctx context.Context, days int) ([]domain.Batch, error)
	DeactivateBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	AdjustStock(ctx context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error)
	ListStockAdjustments(ctx context.Context, medicineID string, limit int) ([]domain.StockAdjustment, error)

	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Sale, error)

	CreateReturn(ctx context.Context, draft domain.ReturnDraft) (*domain.Return, error)
	ListReturnsBySale(ctx context.Context, saleID string) ([]domain.Return, error)
	GetReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	CreatePrescription(ctx context.Context, prescription domain.Prescription) (*domain.Prescription, error)
	GetPrescriptionByID(ctx context.Context, id string) (*domain.Prescription, error)
	ListPrescriptions(ctx context.Context, customerID string, status string, limit int) ([]domain.Prescription, error)

	GetDailySalesReport(ctx context.Context, day time.Time) (domain.DailySalesReport, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
