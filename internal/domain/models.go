package domain

import "time"

type Medicine struct {
	ID                   string    `json:"id"`
	SKU                  string    `json:"sku"`
	Name                 string    `json:"name"`
	GenericName          string    `json:"generic_name,omitempty"`
	Category             string    `json:"category,omitempty"`
	Manufacturer         string    `json:"manufacturer,omitempty"`
	Form                 string    `json:"form"`
	Strength             string    `json:"strength,omitempty"`
	UnitCost             int64     `json:"unit_cost"`
	SellingPrice         int64     `json:"selling_price"`
	TotalQuantity        int       `json:"total_quantity"`
	ReorderLevel         int       `json:"reorder_level"`
	RequiresPrescription bool      `json:"requires_prescription"`
	Active               bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type MedicineCreateRequest struct {
	SKU                  string `json:"sku"`
	Name                 string `json:"name"`
	GenericName          string `json:"generic_name"`
	Category             string `json:"category"`
	Manufacturer         string `json:"manufacturer"`
	Form                 string `json:"form"`
	Strength             string `json:"strength"`
	UnitCost             int64  `json:"unit_cost"`
	SellingPrice         int64  `json:"selling_price"`
	ReorderLevel         int    `json:"reorder_level"`
	RequiresPrescription bool   `json:"requires_prescription"`
}

type MedicineUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	GenericName  *string `json:"generic_name,omitempty"`
	Category     *string `json:"category,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	SellingPrice *int64  `json:"selling_price,omitempty"`
	ReorderLevel *int    `json:"reorder_level,omitempty"`
	Active       *bool   `json:"is_active,omitempty"`
}

type Batch struct {
	ID                    string    `json:"id"`
	MedicineID            string    `json:"medicine_id"`
	BatchNumber           string    `json:"batch_number"`
	SupplierID            string    `json:"supplier_id,omitempty"`
	Quantity              int       `json:"quantity"`
	RemainingQuantity     int       `json:"remaining_quantity"`
	UnitCost              int64     `json:"unit_cost"`
	SellingPriceAtReceipt int64     `json:"selling_price_at_receipt"`
	ManufactureDate       time.Time `json:"manufacture_date"`
	ExpiryDate            time.Time `json:"expiry_date"`
	Active                bool      `json:"is_active"`
	ReceivedAt            time.Time `json:"received_at"`
}

type BatchReceiveRequest struct {
	MedicineID      string `json:"medicine_id"`
	BatchNumber     string `json:"batch_number"`
	SupplierID      string `json:"supplier_id,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitCost        int64  `json:"unit_cost"`
	ManufactureDate string `json:"manufacture_date"`
	ExpiryDate      string `json:"expiry_date"`
}

type StockAdjustment struct {
	ID         string    `json:"id"`
	MedicineID string    `json:"medicine_id"`
	BatchID    string    `json:"batch_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	AdjustedBy string    `json:"adjusted_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type StockAdjustmentRequest struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
	Notes    string `json:"notes"`
}

type CartLine struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
}

type SaleRequest struct {
	CustomerID      string     `json:"customer_id,omitempty"`
	PrescriptionID  string     `json:"prescription_id,omitempty"`
	PaymentMethod   string     `json:"payment_method"`
	AmountPaid      int64      `json:"amount_paid"`
	DiscountPercent float64    `json:"discount_percentage"`
	Notes           string     `json:"notes,omitempty"`
	CartItems       []CartLine `json:"cart_items"`
}

type SaleItem struct {
	ID         string `json:"id"`
	SaleID     string `json:"sale_id"`
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	UnitCost   int64  `json:"unit_cost"`
	TotalPrice int64  `json:"total_price"`
	TotalCost  int64  `json:"total_cost"`
}

type Sale struct {
	ID              string     `json:"id"`
	InvoiceNumber   string     `json:"invoice_number"`
	CustomerID      string     `json:"customer_id,omitempty"`
	PrescriptionID  string     `json:"prescription_id,omitempty"`
	Subtotal        int64      `json:"subtotal"`
	DiscountPercent float64    `json:"discount_percentage"`
	DiscountAmount  int64      `json:"discount_amount"`
	TaxPercent      float64    `json:"tax_percentage"`
	TaxAmount       int64      `json:"tax_amount"`
	TotalAmount     int64      `json:"total_amount"`
	AmountPaid      int64      `json:"amount_paid"`
	ChangeAmount    int64      `json:"change_amount"`
	PaymentMethod   string     `json:"payment_method"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	ServedBy        string     `json:"served_by"`
	SaleDate        time.Time  `json:"sale_date"`
	Items           []SaleItem `json:"items"`
}

// SaleDraft is the persistence input for one sale: validated cart lines plus
// the pricing parameters frozen by the service layer. Allocation, numbering
// and derived totals are filled in by the store inside its unit of work.
type SaleDraft struct {
	ID              string
	CartItems       []CartLine
	CustomerID      string
	PrescriptionID  string
	PaymentMethod   string
	AmountPaid      int64
	DiscountPercent float64
	TaxPercent      float64
	Notes           string
	ServedBy        string
	SaleDate        time.Time
}

type SaleResponse struct {
	SaleID         string `json:"sale_id"`
	InvoiceNumber  string `json:"invoice_number"`
	Subtotal       int64  `json:"subtotal"`
	DiscountAmount int64  `json:"discount_amount"`
	TaxAmount      int64  `json:"tax_amount"`
	TotalAmount    int64  `json:"total_amount"`
	ChangeAmount   int64  `json:"change_amount"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type ReturnLine struct {
	SaleItemID string `json:"sale_item_id"`
	Quantity   int    `json:"quantity"`
	Restock    bool   `json:"restock"`
}

type ReturnRequest struct {
	SaleID       string       `json:"sale_id"`
	Reason       string       `json:"reason"`
	RefundMethod string       `json:"refund_method"`
	Notes        string       `json:"notes,omitempty"`
	ManagerPIN   string       `json:"manager_pin,omitempty"`
	Items        []ReturnLine `json:"items"`
}

type ReturnItem struct {
	ID          string `json:"id"`
	ReturnID    string `json:"return_id"`
	SaleItemID  string `json:"sale_item_id"`
	MedicineID  string `json:"medicine_id"`
	BatchID     string `json:"batch_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalRefund int64  `json:"total_refund"`
	Restock     bool   `json:"restock"`
}

type Return struct {
	ID           string       `json:"id"`
	ReturnNumber string       `json:"return_number"`
	SaleID       string       `json:"sale_id"`
	CustomerID   string       `json:"customer_id,omitempty"`
	Reason       string       `json:"reason"`
	RefundMethod string       `json:"refund_method"`
	RefundAmount int64        `json:"refund_amount"`
	Notes        string       `json:"notes,omitempty"`
	ProcessedBy  string       `json:"processed_by"`
	CreatedAt    time.Time    `json:"created_at"`
	Items        []ReturnItem `json:"items"`
}

// ReturnDraft carries validated return lines into the store's unit of work.
type ReturnDraft struct {
	ID           string
	SaleID       string
	Reason       string
	RefundMethod string
	Notes        string
	ProcessedBy  string
	CreatedAt    time.Time
	Items        []ReturnLine
}

type ReturnResponse struct {
	Return Return `json:"return"`
}

type Customer struct {
	ID             string    `json:"id"`
	Code           string    `json:"customer_code"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	Allergies      string    `json:"allergies,omitempty"`
	LoyaltyPoints  int64     `json:"loyalty_points"`
	TotalPurchases int64     `json:"total_purchases"`
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Allergies string `json:"allergies"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Code          string    `json:"supplier_code"`
	Name          string    `json:"company_name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

type PrescriptionItem struct {
	MedicineID         string `json:"medicine_id"`
	Dosage             string `json:"dosage"`
	Frequency          string `json:"frequency"`
	Duration           string `json:"duration"`
	QuantityPrescribed int    `json:"quantity_prescribed"`
}

type Prescription struct {
	ID                 string             `json:"id"`
	PrescriptionNumber string             `json:"prescription_number"`
	CustomerID         string             `json:"customer_id"`
	DoctorName         string             `json:"doctor_name"`
	DoctorLicense      string             `json:"doctor_license,omitempty"`
	PrescriptionDate   time.Time          `json:"prescription_date"`
	ValidUntil         time.Time          `json:"valid_until"`
	Status             string             `json:"status"`
	FilledBy           string             `json:"filled_by,omitempty"`
	FilledAt           *time.Time         `json:"filled_at,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	Items              []PrescriptionItem `json:"items"`
	CreatedAt          time.Time          `json:"created_at"`
}

type PrescriptionCreateRequest struct {
	CustomerID       string             `json:"customer_id"`
	DoctorName       string             `json:"doctor_name"`
	DoctorLicense    string             `json:"doctor_license"`
	PrescriptionDate string             `json:"prescription_date"`
	ValidUntil       string             `json:"valid_until"`
	Notes            string             `json:"notes"`
	Items            []PrescriptionItem `json:"items"`
}

type StockAlert struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Priority   string `json:"priority"`
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id,omitempty"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

type StockAlertResponse struct {
	GeneratedAt string       `json:"generated_at"`
	Alerts      []StockAlert `json:"alerts"`
}

type DailySalesReport struct {
	Date            string `json:"date"`
	SaleCount       int64  `json:"sale_count"`
	GrossSales      int64  `json:"gross_sales"`
	DiscountTotal   int64  `json:"discount_total"`
	TaxTotal        int64  `json:"tax_total"`
	NetSales        int64  `json:"net_sales"`
	RefundTotal     int64  `json:"refund_total"`
	EstimatedMargin int64  `json:"estimated_margin"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	SaleStatusPending           = "pending"
	SaleStatusCompleted         = "completed"
	SaleStatusRefunded          = "refunded"
	SaleStatusPartiallyRefunded = "partially_refunded"
	SaleStatusCancelled         = "cancelled"
)

const (
	PaymentCash      = "cash"
	PaymentCard      = "card"
	PaymentMobile    = "mobile"
	PaymentInsurance = "insurance"
	PaymentCredit    = "credit"
)

const (
	PrescriptionStatusPending   = "pending"
	PrescriptionStatusPartial   = "partial"
	PrescriptionStatusFilled    = "filled"
	PrescriptionStatusCancelled = "cancelled"
	PrescriptionStatusExpired   = "expired"
)

const (
	AdjustmentReasonDamaged    = "damaged"
	AdjustmentReasonExpired    = "expired"
	AdjustmentReasonLost       = "lost"
	AdjustmentReasonCorrection = "correction"
	AdjustmentReasonOther      = "other"
)

const (
	ReturnReasonExpired         = "expired"
	ReturnReasonDamaged         = "damaged"
	ReturnReasonWrongItem       = "wrong_item"
	ReturnReasonCustomerRequest = "customer_request"
	ReturnReasonOther           = "other"
)

const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeNearExpiry = "expiry"
	AlertTypeExpired    = "expired"
)

const (
	AlertPriorityLow      = "low"
	AlertPriorityMedium   = "medium"
	AlertPriorityHigh     = "high"
	AlertPriorityCritical = "critical"
)

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCashier    = "cashier"
	RoleManager    = "manager"
)
