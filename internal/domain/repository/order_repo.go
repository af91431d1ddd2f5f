package repository

import (
	"time"

	"github.com/yourusername/storefront-api/internal/domain/entity"
)

// OrderFilters — фильтры списка заказов для админ-панели
type OrderFilters struct {
	Status   string
	Search   string // по номеру заказа, имени или email покупателя
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderStats — агрегаты для дашборда админ-панели
type OrderStats struct {
	TotalOrders   int64 `json:"total_orders"`
	PendingOrders int64 `json:"pending_orders"`
	Revenue       int64 `json:"revenue"` // Сумма total по не-отменённым заказам
}

// OrderRepository persists customer orders.
type OrderRepository interface {
	// CreateWithStock inserts the order and decrements product stock for each
	// item in one transaction; fails if any product has insufficient stock.
	CreateWithStock(order *entity.Order) error
	GetByID(id uint) (*entity.Order, error)
	ListByUserID(userID uint, limit, offset int) ([]entity.Order, int64, error)
	ListWithFilters(filters OrderFilters, limit, offset int) ([]entity.Order, int64, error)
	// UpdateStatus performs a guarded transition: the row is updated only if
	// its current status still matches expected.
	UpdateStatus(id uint, fromStatus, toStatus string) error
	GetStats() (*OrderStats, error)
}
