package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apotekku/backend/internal/allocation"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/pricing"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

// Store is the postgres-backed Repository. The schema it expects is in
// schema.sql next to this file; migrations are applied out of band.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const medicineColumns = `
	id, sku, name, COALESCE(generic_name, ''), COALESCE(category, ''),
	COALESCE(manufacturer, ''), form, COALESCE(strength, ''),
	unit_cost, selling_price, total_quantity, reorder_level,
	requires_prescription, active, created_at, updated_at`

func scanMedicine(row interface{ Scan(...any) error }) (domain.Medicine, error) {
	var m domain.Medicine
	err := row.Scan(
		&m.ID, &m.SKU, &m.Name, &m.GenericName, &m.Category,
		&m.Manufacturer, &m.Form, &m.Strength,
		&m.UnitCost, &m.SellingPrice, &m.TotalQuantity, &m.ReorderLevel,
		&m.RequiresPrescription, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (s *Store) ListMedicines(ctx context.Context, activeOnly bool) ([]domain.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY name, sku`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, 128)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return medicines, nil
}

func (s *Store) SearchMedicines(ctx context.Context, query string, limit int) ([]domain.Medicine, error) {
	query = strings.TrimSpace(query)
	if limit < 1 {
		limit = 10
	}
	pattern := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+medicineColumns+`
		FROM medicines
		WHERE active = true
		  AND (name ILIKE $1 OR generic_name ILIKE $1 OR sku ILIKE $1)
		ORDER BY name, sku
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, limit)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return medicines, nil
}

func (s *Store) CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	medicine.SKU = strings.ToUpper(strings.TrimSpace(medicine.SKU))
	medicine.Name = strings.TrimSpace(medicine.Name)
	if medicine.SKU == "" || medicine.Name == "" || medicine.SellingPrice < 1 {
		return nil, store.ErrInvalidSale
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medicines (
			id, sku, name, generic_name, category, manufacturer, form, strength,
			unit_cost, selling_price, total_quantity, reorder_level,
			requires_prescription, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, true, $13, $14)
	`,
		medicine.ID, medicine.SKU, medicine.Name,
		nullIfEmpty(medicine.GenericName), nullIfEmpty(medicine.Category),
		nullIfEmpty(medicine.Manufacturer), medicine.Form, nullIfEmpty(medicine.Strength),
		medicine.UnitCost, medicine.SellingPrice, medicine.ReorderLevel,
		medicine.RequiresPrescription, medicine.CreatedAt, medicine.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := medicine
	return &created, nil
}

func (s *Store) GetMedicineByID(ctx context.Context, id string) (*domain.Medicine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id)
	m, err := scanMedicine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetMedicineBySKU(ctx context.Context, sku string) (*domain.Medicine, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	row := s.db.QueryRowContext(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE sku = $1`, sku)
	m, err := scanMedicine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	if strings.TrimSpace(medicine.Name) == "" || medicine.SellingPrice < 1 {
		return nil, store.ErrInvalidSale
	}

	// SKU and stock aggregates are not editable through update.
	row := s.db.QueryRowContext(ctx, `
		UPDATE medicines SET
			name = $2, generic_name = $3, category = $4, manufacturer = $5,
			form = $6, strength = $7, unit_cost = $8, selling_price = $9,
			reorder_level = $10, requires_prescription = $11, active = $12,
			updated_at = $13
		WHERE id = $1
		RETURNING `+medicineColumns+`
	`,
		medicine.ID, strings.TrimSpace(medicine.Name),
		nullIfEmpty(medicine.GenericName), nullIfEmpty(medicine.Category),
		nullIfEmpty(medicine.Manufacturer), medicine.Form, nullIfEmpty(medicine.Strength),
		medicine.UnitCost, medicine.SellingPrice, medicine.ReorderLevel,
		medicine.RequiresPrescription, medicine.Active, time.Now().UTC(),
	)
	m, err := scanMedicine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListLowStockMedicines(ctx context.Context) ([]domain.Medicine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+medicineColumns+`
		FROM medicines
		WHERE active = true AND total_quantity <= reorder_level
		ORDER BY total_quantity, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, 16)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return medicines, nil
}

const batchColumns = `
	id, medicine_id, batch_number, COALESCE(supplier_id, ''),
	quantity, remaining_quantity, unit_cost, selling_price_at_receipt,
	manufacture_date, expiry_date, active, received_at`

func scanBatch(row interface{ Scan(...any) error }) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.ID, &b.MedicineID, &b.BatchNumber, &b.SupplierID,
		&b.Quantity, &b.RemainingQuantity, &b.UnitCost, &b.SellingPriceAtReceipt,
		&b.ManufactureDate, &b.ExpiryDate, &b.Active, &b.ReceivedAt,
	)
	return b, err
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error) {
	batch.BatchNumber = strings.TrimSpace(batch.BatchNumber)
	if batch.MedicineID == "" || batch.BatchNumber == "" || batch.Quantity < 1 {
		return nil, store.ErrInvalidSale
	}
	if !batch.ExpiryDate.After(batch.ManufactureDate) {
		return nil, store.ErrInvalidSale
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	batch.RemainingQuantity = batch.Quantity
	batch.Active = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var unitCost, sellingPrice int64
	err = tx.QueryRowContext(ctx, `
		SELECT unit_cost, selling_price
		FROM medicines
		WHERE id = $1
		FOR UPDATE
	`, batch.MedicineID).Scan(&unitCost, &sellingPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if batch.UnitCost < 1 {
		batch.UnitCost = unitCost
	}
	if batch.SellingPriceAtReceipt < 1 {
		batch.SellingPriceAtReceipt = sellingPrice
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (
			id, medicine_id, batch_number, supplier_id,
			quantity, remaining_quantity, unit_cost, selling_price_at_receipt,
			manufacture_date, expiry_date, active, received_at
		) VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, true, $10)
	`,
		batch.ID, batch.MedicineID, batch.BatchNumber, nullIfEmpty(batch.SupplierID),
		batch.Quantity, batch.UnitCost, batch.SellingPriceAtReceipt,
		batch.ManufactureDate, batch.ExpiryDate, batch.ReceivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE medicines
		SET total_quantity = total_quantity + $2, updated_at = $3
		WHERE id = $1
	`, batch.MedicineID, batch.Quantity, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := batch
	return &created, nil
}

func (s *Store) ListBatches(ctx context.Context, medicineID string, includeInactive bool) ([]domain.Batch, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM medicines WHERE id = $1)`, medicineID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	query := `SELECT ` + batchColumns + ` FROM batches WHERE medicine_id = $1`
	if !includeInactive {
		query += ` AND active = true`
	}
	query += ` ORDER BY expiry_date, received_at`

	rows, err := s.db.QueryContext(ctx, query, medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 16)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) ListBatchesExpiringWithin(ctx context.Context, days int) ([]domain.Batch, error) {
	if days < 1 {
		days = 90
	}
	horizon := nowDateUTC(time.Now().UTC()).AddDate(0, 0, days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE active = true AND remaining_quantity > 0 AND expiry_date <= $1
		ORDER BY expiry_date, received_at
	`, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 32)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) DeactivateBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE id = $1
		FOR UPDATE
	`, batchID)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !batch.Active {
		return nil, store.ErrInvalidSale
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE batches SET active = false WHERE id = $1`, batchID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE medicines
		SET total_quantity = total_quantity - $2, updated_at = $3
		WHERE id = $1
	`, batch.MedicineID, batch.RemainingQuantity, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	batch.Active = false
	return &batch, nil
}

func (s *Store) AdjustStock(ctx context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error) {
	if adjustment.BatchID == "" || adjustment.Quantity == 0 {
		return nil, store.ErrInvalidSale
	}
	if adjustment.ID == "" {
		adjustment.ID = xid.New("adj")
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE id = $1
		FOR UPDATE
	`, adjustment.BatchID)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	next := batch.RemainingQuantity + adjustment.Quantity
	if next < 0 {
		return nil, store.ErrInsufficientStock
	}
	if next > batch.Quantity {
		return nil, store.ErrInvalidSale
	}
	adjustment.MedicineID = batch.MedicineID

	if _, err := tx.ExecContext(ctx,
		`UPDATE batches SET remaining_quantity = $2 WHERE id = $1`,
		batch.ID, next,
	); err != nil {
		return nil, err
	}
	if batch.Active {
		if _, err := tx.ExecContext(ctx, `
			UPDATE medicines
			SET total_quantity = total_quantity + $2, updated_at = $3
			WHERE id = $1
		`, batch.MedicineID, adjustment.Quantity, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (id, medicine_id, batch_id, quantity, reason, notes, adjusted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		adjustment.ID, adjustment.MedicineID, adjustment.BatchID, adjustment.Quantity,
		adjustment.Reason, nullIfEmpty(adjustment.Notes), adjustment.AdjustedBy, adjustment.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := adjustment
	return &created, nil
}

func (s *Store) ListStockAdjustments(ctx context.Context, medicineID string, limit int) ([]domain.StockAdjustment, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, medicine_id, batch_id, quantity, reason, COALESCE(notes, ''), adjusted_by, created_at
		FROM stock_adjustments`
	args := []any{limit}
	if medicineID != "" {
		query += ` WHERE medicine_id = $2`
		args = append(args, medicineID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := make([]domain.StockAdjustment, 0, 32)
	for rows.Next() {
		var a domain.StockAdjustment
		if err := rows.Scan(&a.ID, &a.MedicineID, &a.BatchID, &a.Quantity, &a.Reason, &a.Notes, &a.AdjustedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// CreateSale runs the whole sale as one serializable transaction: medicine and
// batch rows are locked in a deterministic order, every cart line is planned
// first-expiry-first-out, and the invoice number comes from an atomic
// per-date counter upsert. Any failure rolls the whole sale back.
func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.CartItems) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidSale)
	}
	saleDate := draft.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}
	saleID := draft.ID
	if saleID == "" {
		saleID = xid.New("sale")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if draft.CustomerID != "" {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT true FROM customers WHERE id = $1 FOR UPDATE`, draft.CustomerID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, draft.CustomerID)
		}
		if err != nil {
			return nil, err
		}
	}
	if draft.PrescriptionID != "" {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT true FROM prescriptions WHERE id = $1 FOR UPDATE`, draft.PrescriptionID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: prescription %s", store.ErrNotFound, draft.PrescriptionID)
		}
		if err != nil {
			return nil, err
		}
	}

	items := make([]domain.SaleItem, 0, len(draft.CartItems))
	subtotal := int64(0)
	for _, line := range draft.CartItems {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidSale)
		}

		var medicine domain.Medicine
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, selling_price, active
			FROM medicines
			WHERE id = $1
			FOR UPDATE
		`, line.MedicineID).Scan(&medicine.ID, &medicine.Name, &medicine.SellingPrice, &medicine.Active)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: medicine %s", store.ErrNotFound, line.MedicineID)
		}
		if err != nil {
			return nil, err
		}
		if !medicine.Active {
			return nil, fmt.Errorf("%w: medicine %s", store.ErrNotFound, line.MedicineID)
		}

		// Lock candidate batches in FEFO order so concurrent sales of the
		// same medicine acquire row locks in the same sequence. Expiry
		// eligibility is decided by the planner, not the query.
		batchRows, err := tx.QueryContext(ctx, `
			SELECT `+batchColumns+`
			FROM batches
			WHERE medicine_id = $1 AND active = true AND remaining_quantity > 0
			ORDER BY expiry_date, received_at
			FOR UPDATE
		`, line.MedicineID)
		if err != nil {
			return nil, err
		}
		batches := make([]domain.Batch, 0, 8)
		for batchRows.Next() {
			b, err := scanBatch(batchRows)
			if err != nil {
				batchRows.Close()
				return nil, err
			}
			batches = append(batches, b)
		}
		if err := batchRows.Err(); err != nil {
			batchRows.Close()
			return nil, err
		}
		batchRows.Close()

		plan, err := allocation.Plan(medicine, batches, line.Quantity, saleDate)
		if err != nil {
			return nil, err
		}

		for _, alloc := range plan {
			if _, err := tx.ExecContext(ctx,
				`UPDATE batches SET remaining_quantity = remaining_quantity - $2 WHERE id = $1`,
				alloc.Batch.ID, alloc.Quantity,
			); err != nil {
				return nil, err
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

		if _, err := tx.ExecContext(ctx, `
			UPDATE medicines
			SET total_quantity = total_quantity - $2, updated_at = $3
			WHERE id = $1
		`, medicine.ID, line.Quantity, saleDate); err != nil {
			return nil, err
		}
	}

	totals := pricing.Compute(subtotal, draft.DiscountPercent, draft.TaxPercent, draft.AmountPaid)
	invoiceNumber, err := nextDocNumber(ctx, tx, "INV", saleDate, 5)
	if err != nil {
		return nil, err
	}

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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, customer_id, prescription_id,
			subtotal, discount_percentage, discount_amount,
			tax_percentage, tax_amount, total_amount,
			amount_paid, change_amount, payment_method, status,
			notes, served_by, sale_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.PrescriptionID),
		sale.Subtotal, sale.DiscountPercent, sale.DiscountAmount,
		sale.TaxPercent, sale.TaxAmount, sale.TotalAmount,
		sale.AmountPaid, sale.ChangeAmount, sale.PaymentMethod, sale.Status,
		nullIfEmpty(sale.Notes), sale.ServedBy, sale.SaleDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	for _, item := range sale.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, medicine_id, batch_id, quantity, unit_price, unit_cost, total_price, total_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			item.ID, item.SaleID, item.MedicineID, item.BatchID,
			item.Quantity, item.UnitPrice, item.UnitCost, item.TotalPrice, item.TotalCost,
		); err != nil {
			return nil, err
		}
	}

	if sale.CustomerID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET loyalty_points = loyalty_points + $2, total_purchases = total_purchases + $3
			WHERE id = $1
		`, sale.CustomerID, pricing.LoyaltyPoints(sale.TotalAmount), sale.TotalAmount); err != nil {
			return nil, err
		}
	}
	if sale.PrescriptionID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE prescriptions
			SET status = $2, filled_by = $3, filled_at = $4
			WHERE id = $1
		`, sale.PrescriptionID, domain.PrescriptionStatusFilled, sale.ServedBy, saleDate); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sale, nil
}

const saleColumns = `
	id, invoice_number, COALESCE(customer_id, ''), COALESCE(prescription_id, ''),
	subtotal, discount_percentage, discount_amount,
	tax_percentage, tax_amount, total_amount,
	amount_paid, change_amount, payment_method, status,
	COALESCE(notes, ''), served_by, sale_date`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(
		&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.PrescriptionID,
		&sale.Subtotal, &sale.DiscountPercent, &sale.DiscountAmount,
		&sale.TaxPercent, &sale.TaxAmount, &sale.TotalAmount,
		&sale.AmountPaid, &sale.ChangeAmount, &sale.PaymentMethod, &sale.Status,
		&sale.Notes, &sale.ServedBy, &sale.SaleDate,
	)
	return sale, err
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	if len(saleIDs) == 0 {
		return map[string][]domain.SaleItem{}, nil
	}
	placeholders := make([]string, len(saleIDs))
	args := make([]any, len(saleIDs))
	for i, id := range saleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, medicine_id, batch_id, quantity, unit_price, unit_cost, total_price, total_cost
		FROM sale_items
		WHERE sale_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY sale_id, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	itemsBySale := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(
			&item.ID, &item.SaleID, &item.MedicineID, &item.BatchID,
			&item.Quantity, &item.UnitPrice, &item.UnitCost, &item.TotalPrice, &item.TotalCost,
		); err != nil {
			return nil, err
		}
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return itemsBySale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) GetSaleByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE invoice_number = $1`, invoiceNumber)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("sale_date < $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY sale_date DESC, invoice_number DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	saleIDs := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsBySale, err := s.loadSaleItems(ctx, saleIDs)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
	}
	return sales, nil
}

// CreateReturn reverses part or all of a completed sale in one serializable
// transaction. The sale row lock serializes concurrent returns against the
// same sale, so the cumulative per-item guard reads a stable prior total.
func (s *Store) CreateReturn(ctx context.Context, draft domain.ReturnDraft) (*domain.Return, error) {
	if draft.SaleID == "" || len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: return needs a sale and at least one line", store.ErrInvalidSale)
	}
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	returnID := draft.ID
	if returnID == "" {
		returnID = xid.New("ret")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, draft.SaleID)
	var saleID, customerID, saleStatus string
	err = row.Scan(&saleID, &customerID, &saleStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, draft.SaleID)
	}
	if err != nil {
		return nil, err
	}
	if saleStatus != domain.SaleStatusCompleted && saleStatus != domain.SaleStatusPartiallyRefunded {
		return nil, fmt.Errorf("%w: sale %s is %s", store.ErrInvalidSale, saleID, saleStatus)
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT id, medicine_id, batch_id, quantity, unit_price
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	type soldItem struct {
		MedicineID string
		BatchID    string
		Quantity   int
		UnitPrice  int64
	}
	soldByID := make(map[string]soldItem)
	soldOrder := make([]string, 0, 8)
	for itemRows.Next() {
		var id string
		var item soldItem
		if err := itemRows.Scan(&id, &item.MedicineID, &item.BatchID, &item.Quantity, &item.UnitPrice); err != nil {
			itemRows.Close()
			return nil, err
		}
		soldByID[id] = item
		soldOrder = append(soldOrder, id)
	}
	if err := itemRows.Err(); err != nil {
		itemRows.Close()
		return nil, err
	}
	itemRows.Close()

	returnedRows, err := tx.QueryContext(ctx, `
		SELECT ri.sale_item_id, COALESCE(SUM(ri.quantity), 0)
		FROM return_items ri
		JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1
		GROUP BY ri.sale_item_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	returnedSoFar := make(map[string]int)
	for returnedRows.Next() {
		var saleItemID string
		var qty int
		if err := returnedRows.Scan(&saleItemID, &qty); err != nil {
			returnedRows.Close()
			return nil, err
		}
		returnedSoFar[saleItemID] = qty
	}
	if err := returnedRows.Err(); err != nil {
		returnedRows.Close()
		return nil, err
	}
	returnedRows.Close()

	refundTotal := int64(0)
	lines := make([]domain.ReturnItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: return quantity must be at least 1", store.ErrInvalidSale)
		}
		sold, ok := soldByID[line.SaleItemID]
		if !ok {
			return nil, fmt.Errorf("%w: sale item %s", store.ErrNotFound, line.SaleItemID)
		}
		if returnedSoFar[line.SaleItemID]+line.Quantity > sold.Quantity {
			return nil, fmt.Errorf("%w: return exceeds sold quantity for item %s", store.ErrInvalidSale, line.SaleItemID)
		}
		returnedSoFar[line.SaleItemID] += line.Quantity

		item := domain.ReturnItem{
			ID:          xid.New("ritem"),
			ReturnID:    returnID,
			SaleItemID:  line.SaleItemID,
			MedicineID:  sold.MedicineID,
			BatchID:     sold.BatchID,
			Quantity:    line.Quantity,
			UnitPrice:   sold.UnitPrice,
			TotalRefund: int64(line.Quantity) * sold.UnitPrice,
			Restock:     line.Restock,
		}
		refundTotal += item.TotalRefund
		lines = append(lines, item)
	}

	for _, item := range lines {
		if !item.Restock {
			continue
		}
		var batchActive bool
		err := tx.QueryRowContext(ctx, `
			UPDATE batches
			SET remaining_quantity = remaining_quantity + $2
			WHERE id = $1
			RETURNING active
		`, item.BatchID, item.Quantity).Scan(&batchActive)
		if err != nil {
			return nil, err
		}
		// The aggregate tracks remaining quantity across active batches
		// only; restock into a deactivated batch must not inflate it.
		if !batchActive {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE medicines
			SET total_quantity = total_quantity + $2, updated_at = $3
			WHERE id = $1
		`, item.MedicineID, item.Quantity, createdAt); err != nil {
			return nil, err
		}
	}

	fullyReturned := true
	for _, saleItemID := range soldOrder {
		if returnedSoFar[saleItemID] < soldByID[saleItemID].Quantity {
			fullyReturned = false
			break
		}
	}
	nextStatus := domain.SaleStatusPartiallyRefunded
	if fullyReturned {
		nextStatus = domain.SaleStatusRefunded
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sales SET status = $2 WHERE id = $1`, saleID, nextStatus,
	); err != nil {
		return nil, err
	}

	returnNumber, err := nextDocNumber(ctx, tx, "RET", createdAt, 4)
	if err != nil {
		return nil, err
	}
	ret := &domain.Return{
		ID:           returnID,
		ReturnNumber: returnNumber,
		SaleID:       saleID,
		CustomerID:   customerID,
		Reason:       draft.Reason,
		RefundMethod: draft.RefundMethod,
		RefundAmount: refundTotal,
		Notes:        draft.Notes,
		ProcessedBy:  draft.ProcessedBy,
		CreatedAt:    createdAt,
		Items:        lines,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO returns (id, return_number, sale_id, customer_id, reason, refund_method, refund_amount, notes, processed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		ret.ID, ret.ReturnNumber, ret.SaleID, nullIfEmpty(ret.CustomerID),
		ret.Reason, ret.RefundMethod, ret.RefundAmount,
		nullIfEmpty(ret.Notes), ret.ProcessedBy, ret.CreatedAt,
	); err != nil {
		return nil, err
	}
	for _, item := range ret.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO return_items (id, return_id, sale_item_id, medicine_id, batch_id, quantity, unit_price, total_refund, restock)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			item.ID, item.ReturnID, item.SaleItemID, item.MedicineID, item.BatchID,
			item.Quantity, item.UnitPrice, item.TotalRefund, item.Restock,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) ListReturnsBySale(ctx context.Context, saleID string) ([]domain.Return, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, return_number, sale_id, COALESCE(customer_id, ''), reason, refund_method, refund_amount, COALESCE(notes, ''), processed_by, created_at
		FROM returns
		WHERE sale_id = $1
		ORDER BY return_number
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.Return, 0, 4)
	returnIndex := make(map[string]int, 4)
	for rows.Next() {
		var r domain.Return
		if err := rows.Scan(
			&r.ID, &r.ReturnNumber, &r.SaleID, &r.CustomerID, &r.Reason,
			&r.RefundMethod, &r.RefundAmount, &r.Notes, &r.ProcessedBy, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		returnIndex[r.ID] = len(returns)
		returns = append(returns, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(returns) == 0 {
		return returns, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT ri.id, ri.return_id, ri.sale_item_id, ri.medicine_id, ri.batch_id, ri.quantity, ri.unit_price, ri.total_refund, ri.restock
		FROM return_items ri
		JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1
		ORDER BY ri.return_id, ri.id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.ReturnItem
		if err := itemRows.Scan(
			&item.ID, &item.ReturnID, &item.SaleItemID, &item.MedicineID, &item.BatchID,
			&item.Quantity, &item.UnitPrice, &item.TotalRefund, &item.Restock,
		); err != nil {
			return nil, err
		}
		if i, ok := returnIndex[item.ReturnID]; ok {
			returns[i].Items = append(returns[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return returns, nil
}

func (s *Store) GetReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.sale_item_id, COALESCE(SUM(ri.quantity), 0)
		FROM return_items ri
		JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1
		GROUP BY ri.sale_item_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var saleItemID string
		var qty int
		if err := rows.Scan(&saleItemID, &qty); err != nil {
			return nil, err
		}
		result[saleItemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Phone = strings.TrimSpace(customer.Phone)
	if strings.TrimSpace(customer.FirstName) == "" || customer.Phone == "" {
		return nil, store.ErrInvalidSale
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.Active = true
	customer.LoyaltyPoints = 0
	customer.TotalPurchases = 0

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if customer.Code == "" {
		customer.Code, err = nextDocNumber(ctx, tx, "CUST", customer.CreatedAt, 3)
		if err != nil {
			return nil, err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, customer_code, first_name, last_name, phone, email, allergies, loyalty_points, total_purchases, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, true, $8)
	`,
		customer.ID, customer.Code, customer.FirstName, nullIfEmpty(customer.LastName),
		customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Allergies),
		customer.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

const customerColumns = `
	id, customer_code, first_name, COALESCE(last_name, ''), phone,
	COALESCE(email, ''), COALESCE(allergies, ''), loyalty_points, total_purchases,
	active, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.Code, &c.FirstName, &c.LastName, &c.Phone,
		&c.Email, &c.Allergies, &c.LoyaltyPoints, &c.TotalPurchases,
		&c.Active, &c.CreatedAt,
	)
	return c, err
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY created_at DESC, customer_code
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
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
	supplier.Active = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if supplier.Code == "" {
		// Suppliers number from a single undated counter.
		var seq int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO doc_counters (prefix, day, seq)
			VALUES ('SUP', '', 1)
			ON CONFLICT (prefix, day) DO UPDATE SET seq = doc_counters.seq + 1
			RETURNING seq
		`).Scan(&seq)
		if err != nil {
			return nil, err
		}
		supplier.Code = fmt.Sprintf("SUP-%04d", seq)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO suppliers (id, supplier_code, company_name, contact_person, phone, email, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)
	`,
		supplier.ID, supplier.Code, supplier.Name, nullIfEmpty(supplier.ContactPerson),
		supplier.Phone, nullIfEmpty(supplier.Email), supplier.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_code, company_name, COALESCE(contact_person, ''), phone, COALESCE(email, ''), active, created_at
		FROM suppliers
		ORDER BY supplier_code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Code, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.Email, &sup.Active, &sup.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePrescription(ctx context.Context, prescription domain.Prescription) (*domain.Prescription, error) {
	if prescription.CustomerID == "" || len(prescription.Items) == 0 {
		return nil, store.ErrInvalidSale
	}
	for _, item := range prescription.Items {
		if item.MedicineID == "" || item.QuantityPrescribed < 1 {
			return nil, store.ErrInvalidSale
		}
	}
	if prescription.ID == "" {
		prescription.ID = xid.New("rx")
	}
	if prescription.CreatedAt.IsZero() {
		prescription.CreatedAt = time.Now().UTC()
	}
	prescription.Status = domain.PrescriptionStatusPending
	prescription.FilledBy = ""
	prescription.FilledAt = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerExists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, prescription.CustomerID,
	).Scan(&customerExists); err != nil {
		return nil, err
	}
	if !customerExists {
		return nil, store.ErrNotFound
	}
	for _, item := range prescription.Items {
		var medicineExists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM medicines WHERE id = $1)`, item.MedicineID,
		).Scan(&medicineExists); err != nil {
			return nil, err
		}
		if !medicineExists {
			return nil, fmt.Errorf("%w: medicine %s", store.ErrNotFound, item.MedicineID)
		}
	}

	if prescription.PrescriptionNumber == "" {
		prescription.PrescriptionNumber, err = nextDocNumber(ctx, tx, "RX", prescription.CreatedAt, 4)
		if err != nil {
			return nil, err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO prescriptions (id, prescription_number, customer_id, doctor_name, doctor_license, prescription_date, valid_until, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		prescription.ID, prescription.PrescriptionNumber, prescription.CustomerID,
		prescription.DoctorName, nullIfEmpty(prescription.DoctorLicense),
		prescription.PrescriptionDate, prescription.ValidUntil,
		prescription.Status, nullIfEmpty(prescription.Notes), prescription.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	for _, item := range prescription.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prescription_items (prescription_id, medicine_id, dosage, frequency, duration, quantity_prescribed)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			prescription.ID, item.MedicineID, nullIfEmpty(item.Dosage),
			nullIfEmpty(item.Frequency), nullIfEmpty(item.Duration), item.QuantityPrescribed,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := prescription
	return &created, nil
}

const prescriptionColumns = `
	id, prescription_number, customer_id, doctor_name, COALESCE(doctor_license, ''),
	prescription_date, valid_until, status, COALESCE(filled_by, ''), filled_at,
	COALESCE(notes, ''), created_at`

func scanPrescription(row interface{ Scan(...any) error }) (domain.Prescription, error) {
	var p domain.Prescription
	var filledAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.PrescriptionNumber, &p.CustomerID, &p.DoctorName, &p.DoctorLicense,
		&p.PrescriptionDate, &p.ValidUntil, &p.Status, &p.FilledBy, &filledAt,
		&p.Notes, &p.CreatedAt,
	)
	if filledAt.Valid {
		t := filledAt.Time
		p.FilledAt = &t
	}
	return p, err
}

func (s *Store) loadPrescriptionItems(ctx context.Context, prescriptionID string) ([]domain.PrescriptionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT medicine_id, COALESCE(dosage, ''), COALESCE(frequency, ''), COALESCE(duration, ''), quantity_prescribed
		FROM prescription_items
		WHERE prescription_id = $1
		ORDER BY medicine_id
	`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PrescriptionItem, 0, 4)
	for rows.Next() {
		var item domain.PrescriptionItem
		if err := rows.Scan(&item.MedicineID, &item.Dosage, &item.Frequency, &item.Duration, &item.QuantityPrescribed); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPrescriptionByID(ctx context.Context, id string) (*domain.Prescription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
	p, err := scanPrescription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Items, err = s.loadPrescriptionItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPrescriptions(ctx context.Context, customerID string, status string, limit int) ([]domain.Prescription, error) {
	if limit < 1 {
		limit = 50
	}

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if customerID != "" {
		args = append(args, customerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, prescription_number LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prescriptions := make([]domain.Prescription, 0, 16)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range prescriptions {
		prescriptions[i].Items, err = s.loadPrescriptionItems(ctx, prescriptions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return prescriptions, nil
}

func (s *Store) GetDailySalesReport(ctx context.Context, day time.Time) (domain.DailySalesReport, error) {
	dayStart := nowDateUTC(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	report := domain.DailySalesReport{Date: dayStart.Format("2006-01-02")}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(subtotal), 0),
		       COALESCE(SUM(discount_amount), 0),
		       COALESCE(SUM(tax_amount), 0),
		       COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2
		  AND status NOT IN ($3, $4)
	`, dayStart, dayEnd, domain.SaleStatusCancelled, domain.SaleStatusPending).Scan(
		&report.SaleCount, &report.GrossSales, &report.DiscountTotal, &report.TaxTotal, &report.NetSales,
	)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.total_price - si.total_cost), 0)
		FROM sale_items si
		JOIN sales sl ON sl.id = si.sale_id
		WHERE sl.sale_date >= $1 AND sl.sale_date < $2
		  AND sl.status NOT IN ($3, $4)
	`, dayStart, dayEnd, domain.SaleStatusCancelled, domain.SaleStatusPending).Scan(&report.EstimatedMargin)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(refund_amount), 0)
		FROM returns
		WHERE created_at >= $1 AND created_at < $2
	`, dayStart, dayEnd).Scan(&report.RefundTotal)
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	return report, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, true, $4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $2 WHERE username = $1`, username, password,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nextDocNumber claims the next sequence from the per-(prefix, date) counter
// row, e.g. INV-20260830-00001. The upsert is atomic, so concurrent callers
// each get a distinct number with no read-then-write gap.
func nextDocNumber(ctx context.Context, tx *sql.Tx, prefix string, at time.Time, pad int) (string, error) {
	day := at.UTC().Format("20060102")
	var seq int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO doc_counters (prefix, day, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day) DO UPDATE SET seq = doc_counters.seq + 1
		RETURNING seq
	`, prefix, day).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%0*d", prefix, day, pad, seq), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nowDateUTC(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
