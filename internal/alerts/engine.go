// Package alerts builds the stock alert snapshot shown on the dashboard:
// medicines at or below their reorder level and batches approaching expiry.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/xid"
)

const snapshotCacheKey = "apotekku:alerts:snapshot"

type Engine struct {
	cache          cache.AlertCache
	cacheTTL       time.Duration
	nearExpiryDays int
}

func NewEngine(cacheStore cache.AlertCache, cacheTTL time.Duration, nearExpiryDays int) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopAlertCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	if nearExpiryDays < 1 {
		nearExpiryDays = 90
	}

	return &Engine{
		cache:          cacheStore,
		cacheTTL:       cacheTTL,
		nearExpiryDays: nearExpiryDays,
	}
}

func (e *Engine) NearExpiryDays() int {
	return e.nearExpiryDays
}

// Build assembles the alert snapshot from the current low-stock medicines and
// near-expiry batches. Snapshots are cached whole; one key serves every
// caller until the TTL lapses.
func (e *Engine) Build(
	ctx context.Context,
	lowStock []domain.Medicine,
	nearExpiry []domain.Batch,
	medicines map[string]domain.Medicine,
) *domain.StockAlertResponse {
	if cached, ok, err := e.cache.Get(ctx, snapshotCacheKey); err == nil && ok {
		return cached
	}

	now := time.Now().UTC()
	alerts := make([]domain.StockAlert, 0, len(lowStock)+len(nearExpiry))

	for _, m := range lowStock {
		alerts = append(alerts, domain.StockAlert{
			ID:         xid.New("alert"),
			Type:       domain.AlertTypeLowStock,
			Priority:   lowStockPriority(m),
			MedicineID: m.ID,
			Title:      "Stock below reorder level",
			Message:    fmt.Sprintf("%s has %d units on hand, reorder level is %d.", m.Name, m.TotalQuantity, m.ReorderLevel),
			CreatedAt:  now.Format(time.RFC3339),
		})
	}

	for _, b := range nearExpiry {
		name := b.MedicineID
		if m, ok := medicines[b.MedicineID]; ok {
			name = m.Name
		}
		daysLeft := int(b.ExpiryDate.Sub(dateOnly(now)).Hours() / 24)
		alert := domain.StockAlert{
			ID:         xid.New("alert"),
			Type:       domain.AlertTypeNearExpiry,
			Priority:   expiryPriority(daysLeft),
			MedicineID: b.MedicineID,
			BatchID:    b.ID,
			CreatedAt:  now.Format(time.RFC3339),
		}
		if daysLeft <= 0 {
			alert.Type = domain.AlertTypeExpired
			alert.Title = "Batch expired"
			alert.Message = fmt.Sprintf("Batch %s of %s expired on %s with %d units remaining.", b.BatchNumber, name, b.ExpiryDate.Format("2006-01-02"), b.RemainingQuantity)
		} else {
			alert.Title = "Batch nearing expiry"
			alert.Message = fmt.Sprintf("Batch %s of %s expires in %d days with %d units remaining.", b.BatchNumber, name, daysLeft, b.RemainingQuantity)
		}
		alerts = append(alerts, alert)
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return priorityRank(alerts[i].Priority) < priorityRank(alerts[j].Priority)
		}
		if alerts[i].Type != alerts[j].Type {
			return alerts[i].Type < alerts[j].Type
		}
		return alerts[i].Message < alerts[j].Message
	})

	resp := &domain.StockAlertResponse{
		GeneratedAt: now.Format(time.RFC3339),
		Alerts:      alerts,
	}
	_ = e.cache.Set(ctx, snapshotCacheKey, resp, e.cacheTTL)
	return resp
}

func lowStockPriority(m domain.Medicine) string {
	if m.TotalQuantity == 0 {
		return domain.AlertPriorityCritical
	}
	if m.ReorderLevel > 0 && m.TotalQuantity*2 <= m.ReorderLevel {
		return domain.AlertPriorityHigh
	}
	return domain.AlertPriorityMedium
}

func expiryPriority(daysLeft int) string {
	switch {
	case daysLeft <= 0:
		return domain.AlertPriorityCritical
	case daysLeft <= 30:
		return domain.AlertPriorityHigh
	case daysLeft <= 60:
		return domain.AlertPriorityMedium
	default:
		return domain.AlertPriorityLow
	}
}

func priorityRank(priority string) int {
	switch priority {
	case domain.AlertPriorityCritical:
		return 0
	case domain.AlertPriorityHigh:
		return 1
	case domain.AlertPriorityMedium:
		return 2
	default:
		return 3
	}
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
