package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateWithStock вставляет заказ и списывает остатки по каждой позиции в
// одной транзакции. Guarded UPDATE по stock >= quantity: RowsAffected == 0
// значит, что остатка не хватает, и вся транзакция откатывается.
func (r *OrderRepo) CreateWithStock(order *entity.Order) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range order.Items {
			result := tx.Model(&entity.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: product #%d", repository.ErrInsufficientStock, item.ProductID)
			}
		}
		return tx.Create(order).Error
	})
}

func (r *OrderRepo) GetByID(id uint) (*entity.Order, error) {
	var order entity.Order
	err := r.db.Preload("Items").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepo) ListByUserID(userID uint, limit, offset int) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	query := r.db.Model(&entity.Order{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	err := query.Preload("Items").
		Limit(limit).Offset(offset).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ListWithFilters возвращает список заказов с фильтрами и total count
func (r *OrderRepo) ListWithFilters(filters repository.OrderFilters, limit, offset int) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	query := r.db.Model(&entity.Order{})

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.Search != "" {
		search := "%" + filters.Search + "%"
		query = query.Where("number ILIKE ? OR customer_name ILIKE ? OR customer_email ILIKE ?",
			search, search, search)
	}

	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}

	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	err := query.Preload("Items").
		Limit(limit).Offset(offset).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus атомарно переводит заказ fromStatus → toStatus.
// RowsAffected == 0 значит, что статус уже изменился конкурентно.
func (r *OrderRepo) UpdateStatus(id uint, fromStatus, toStatus string) error {
	result := r.db.Model(&entity.Order{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return fmt.Errorf("failed to update order #%d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order #%d is no longer %s", apperrors.ErrConflict, id, fromStatus)
	}
	return nil
}

// GetStats возвращает агрегаты для дашборда админ-панели.
func (r *OrderRepo) GetStats() (*repository.OrderStats, error) {
	var stats repository.OrderStats

	if err := r.db.Model(&entity.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	if err := r.db.Model(&entity.Order{}).
		Where("status = ?", entity.OrderStatusPending).
		Count(&stats.PendingOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending orders: %w", err)
	}

	err := r.db.Model(&entity.Order{}).
		Where("status <> ?", entity.OrderStatusCancelled).
		Select("COALESCE(SUM(total), 0)").
		Scan(&stats.Revenue).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	return &stats, nil
}
