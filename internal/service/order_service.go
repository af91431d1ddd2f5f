package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

// OrderNotifier получает события изменения заказов (live-лента админ-панели).
type OrderNotifier interface {
	NotifyOrderEvent(event string, order *entity.Order)
}

// OrderItemInput — позиция создаваемого заказа
type OrderItemInput struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// OrderInput — входные данные оформления заказа
type OrderInput struct {
	CustomerName  string           `json:"customer_name" binding:"required"`
	CustomerEmail string           `json:"customer_email" binding:"required,email"`
	CustomerPhone string           `json:"customer_phone"`
	AddressID     uint             `json:"address_id" binding:"required"`
	Items         []OrderItemInput `json:"items" binding:"required"`
}

// OrderPage — пагинированный список заказов
type OrderPage struct {
	Orders  []entity.Order `json:"orders"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// OrderService предоставляет методы для работы с заказами
type OrderService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	addressRepo  repository.AddressRepository
	emailService EmailService
	notifier     OrderNotifier
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	addressRepo repository.AddressRepository,
	emailService EmailService,
	notifier OrderNotifier,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		addressRepo:  addressRepo,
		emailService: emailService,
		notifier:     notifier,
	}
}

// Create оформляет заказ: цены и адрес снимаются на момент покупки, total
// считается на сервере, остатки списываются в той же транзакции, что и
// вставка заказа. Письмо-подтверждение — best-effort.
func (s *OrderService) Create(ctx context.Context, userID uint, input OrderInput) (*entity.Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w", ErrEmptyOrder)
	}

	address, err := s.addressRepo.GetByID(input.AddressID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: address not found", apperrors.ErrValidation)
		}
		return nil, err
	}

	var items []entity.OrderItem
	var total int64
	for _, in := range input.Items {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrValidation)
		}
		product, err := s.productRepo.GetByID(in.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: product #%d not found", apperrors.ErrValidation, in.ProductID)
			}
			return nil, err
		}
		if !product.InStock(in.Quantity) {
			return nil, fmt.Errorf("%w: product #%d", ErrInsufficientStock, in.ProductID)
		}
		items = append(items, entity.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  in.Quantity,
		})
		total += product.Price * int64(in.Quantity)
	}

	order := &entity.Order{
		Number:        generateOrderNumber(),
		UserID:        userID,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		ShipAddress: fmt.Sprintf("%s, %s, %s, %s - %s",
			address.Name, address.Address, address.City, address.State, address.Pincode),
		Status: entity.OrderStatusPending,
		Total:  total,
		Items:  items,
	}

	if err := s.orderRepo.CreateWithStock(order); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if s.emailService != nil {
		emailCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		go func() {
			defer cancel()
			idempotencyKey := fmt.Sprintf("order-confirm:%s", order.Number)
			if err := s.emailService.SendOrderConfirmation(emailCtx, order.CustomerEmail, order.Number, order.Total, idempotencyKey); err != nil {
				log.Printf("[OrderService] failed to send confirmation for order %s: %v", order.Number, err)
			}
		}()
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderEvent("order_created", order)
	}

	return order, nil
}

func (s *OrderService) Get(id uint) (*entity.Order, error) {
	return s.orderRepo.GetByID(id)
}

// GetForUser возвращает заказ, только если он принадлежит пользователю.
func (s *OrderService) GetForUser(id, userID uint) (*entity.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) ListForUser(userID uint, page, pageSize int) (*OrderPage, error) {
	page, pageSize = normalizePagination(page, pageSize)
	offset := (page - 1) * pageSize

	orders, total, err := s.orderRepo.ListByUserID(userID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Page: page, PerPage: pageSize}, nil
}

func (s *OrderService) ListWithFilters(filters repository.OrderFilters, page, pageSize int) (*OrderPage, error) {
	page, pageSize = normalizePagination(page, pageSize)
	offset := (page - 1) * pageSize

	orders, total, err := s.orderRepo.ListWithFilters(filters, pageSize, offset)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Page: page, PerPage: pageSize}, nil
}

// UpdateStatus переводит заказ в новый статус с проверкой допустимости
// перехода. Смена статуса транслируется в live-ленту админ-панели.
func (s *OrderService) UpdateStatus(id uint, toStatus string) (*entity.Order, error) {
	if !entity.IsValidOrderStatus(toStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, toStatus)
	}

	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(toStatus) {
		return nil, fmt.Errorf("%w: %s cannot become %s", ErrInvalidTransition, order.Status, toStatus)
	}

	if err := s.orderRepo.UpdateStatus(id, order.Status, toStatus); err != nil {
		return nil, err
	}

	order.Status = toStatus
	if s.notifier != nil {
		s.notifier.NotifyOrderEvent("order_status_changed", order)
	}
	return order, nil
}

func (s *OrderService) GetStats() (*repository.OrderStats, error) {
	return s.orderRepo.GetStats()
}

// ExportList возвращает заказы для выгрузки отчёта (без пагинации, но с
// верхней границей, чтобы не собирать в памяти неограниченный список).
func (s *OrderService) ExportList(filters repository.OrderFilters) ([]entity.Order, error) {
	const exportLimit = 10000
	orders, _, err := s.orderRepo.ListWithFilters(filters, exportLimit, 0)
	return orders, err
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// generateOrderNumber выдаёт человекочитаемый номер заказа ORD-XXXXXXXX.
func generateOrderNumber() string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "ORD-" + fragment
}
