package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

// ============================================================================
// Моки для тестирования OrderService
// ============================================================================

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateWithStock(order *entity.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(id uint) (*entity.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUserID(userID uint, limit, offset int) ([]entity.Order, int64, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) ListWithFilters(filters repository.OrderFilters, limit, offset int) ([]entity.Order, int64, error) {
	args := m.Called(filters, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) UpdateStatus(id uint, fromStatus, toStatus string) error {
	args := m.Called(id, fromStatus, toStatus)
	return args.Error(0)
}

func (m *MockOrderRepository) GetStats() (*repository.OrderStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OrderStats), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(product *entity.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(id uint) (*entity.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

func (m *MockProductRepository) ListWithFilters(filters repository.ProductFilters, limit, offset int) ([]entity.Product, int64, error) {
	args := m.Called(filters, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) Update(product *entity.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockAddressRepository struct {
	mock.Mock
}

func (m *MockAddressRepository) Create(address *entity.Address) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockAddressRepository) GetByID(id, userID uint) (*entity.Address, error) {
	args := m.Called(id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Address), args.Error(1)
}

func (m *MockAddressRepository) ListByUserID(userID uint) ([]entity.Address, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Address), args.Error(1)
}

func (m *MockAddressRepository) Update(address *entity.Address) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockAddressRepository) SetDefault(id, userID uint) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockAddressRepository) Delete(id, userID uint) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

type MockOrderNotifier struct {
	mock.Mock
}

func (m *MockOrderNotifier) NotifyOrderEvent(event string, order *entity.Order) {
	m.Called(event, order)
}

func testAddress() *entity.Address {
	return &entity.Address{
		ID:      3,
		UserID:  1,
		Name:    "Emma Thompson",
		Phone:   "9876543210",
		Address: "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}
}

// ============================================================================
// Create
// ============================================================================

func TestOrderCreate_ComputesTotalAndSnapshotsPrices(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	productRepo := new(MockProductRepository)
	addressRepo := new(MockAddressRepository)
	notifier := new(MockOrderNotifier)
	svc := NewOrderService(orderRepo, productRepo, addressRepo, nil, notifier)

	addressRepo.On("GetByID", uint(3), uint(1)).Return(testAddress(), nil)
	productRepo.On("GetByID", uint(10)).Return(&entity.Product{ID: 10, Name: "Handcrafted Oak Table", Price: 129900, Stock: 12}, nil)
	productRepo.On("GetByID", uint(11)).Return(&entity.Product{ID: 11, Name: "Rustic Pine Chair", Price: 34900, Stock: 25}, nil)

	var created *entity.Order
	orderRepo.On("CreateWithStock", mock.AnythingOfType("*entity.Order")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*entity.Order)
		created.ID = 1001
	}).Return(nil)
	notifier.On("NotifyOrderEvent", "order_created", mock.AnythingOfType("*entity.Order")).Return()

	order, err := svc.Create(context.Background(), 1, OrderInput{
		CustomerName:  "Emma Thompson",
		CustomerEmail: "emma@email.com",
		AddressID:     3,
		Items: []OrderItemInput{
			{ProductID: 10, Quantity: 1},
			{ProductID: 11, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	// Total считается на сервере: 129900 + 2*34900
	assert.Equal(t, int64(199700), order.Total)
	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, order.Number)
	assert.Contains(t, order.ShipAddress, "Bengaluru")
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(129900), order.Items[0].UnitPrice)

	notifier.AssertCalled(t, "NotifyOrderEvent", "order_created", mock.AnythingOfType("*entity.Order"))
}

func TestOrderCreate_EmptyItems(t *testing.T) {
	svc := NewOrderService(new(MockOrderRepository), new(MockProductRepository), new(MockAddressRepository), nil, nil)

	_, err := svc.Create(context.Background(), 1, OrderInput{
		CustomerName:  "Emma",
		CustomerEmail: "emma@email.com",
		AddressID:     3,
	})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestOrderCreate_InsufficientStock(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	productRepo := new(MockProductRepository)
	addressRepo := new(MockAddressRepository)
	svc := NewOrderService(orderRepo, productRepo, addressRepo, nil, nil)

	addressRepo.On("GetByID", uint(3), uint(1)).Return(testAddress(), nil)
	productRepo.On("GetByID", uint(10)).Return(&entity.Product{ID: 10, Name: "Oak Table", Price: 129900, Stock: 1}, nil)

	_, err := svc.Create(context.Background(), 1, OrderInput{
		CustomerName:  "Emma",
		CustomerEmail: "emma@email.com",
		AddressID:     3,
		Items:         []OrderItemInput{{ProductID: 10, Quantity: 2}},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	orderRepo.AssertNotCalled(t, "CreateWithStock", mock.Anything)
}

func TestOrderCreate_StockRaceSurfacesFromRepo(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	productRepo := new(MockProductRepository)
	addressRepo := new(MockAddressRepository)
	svc := NewOrderService(orderRepo, productRepo, addressRepo, nil, nil)

	addressRepo.On("GetByID", uint(3), uint(1)).Return(testAddress(), nil)
	productRepo.On("GetByID", uint(10)).Return(&entity.Product{ID: 10, Name: "Oak Table", Price: 129900, Stock: 2}, nil)
	// Проверка в сервисе прошла, но транзакция проиграла гонку за остаток
	orderRepo.On("CreateWithStock", mock.Anything).Return(repository.ErrInsufficientStock)

	_, err := svc.Create(context.Background(), 1, OrderInput{
		CustomerName:  "Emma",
		CustomerEmail: "emma@email.com",
		AddressID:     3,
		Items:         []OrderItemInput{{ProductID: 10, Quantity: 2}},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestOrderCreate_UnknownAddress(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	productRepo := new(MockProductRepository)
	addressRepo := new(MockAddressRepository)
	svc := NewOrderService(orderRepo, productRepo, addressRepo, nil, nil)

	addressRepo.On("GetByID", uint(99), uint(1)).Return(nil, apperrors.ErrNotFound)

	_, err := svc.Create(context.Background(), 1, OrderInput{
		CustomerName:  "Emma",
		CustomerEmail: "emma@email.com",
		AddressID:     99,
		Items:         []OrderItemInput{{ProductID: 10, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// ============================================================================
// UpdateStatus
// ============================================================================

func TestOrderUpdateStatus_LegalTransition(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	notifier := new(MockOrderNotifier)
	svc := NewOrderService(orderRepo, new(MockProductRepository), new(MockAddressRepository), nil, notifier)

	orderRepo.On("GetByID", uint(1001)).Return(&entity.Order{ID: 1001, Status: entity.OrderStatusPending}, nil)
	orderRepo.On("UpdateStatus", uint(1001), entity.OrderStatusPending, entity.OrderStatusProcessing).Return(nil)
	notifier.On("NotifyOrderEvent", "order_status_changed", mock.AnythingOfType("*entity.Order")).Return()

	order, err := svc.UpdateStatus(1001, entity.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusProcessing, order.Status)
	notifier.AssertCalled(t, "NotifyOrderEvent", "order_status_changed", mock.AnythingOfType("*entity.Order"))
}

func TestOrderUpdateStatus_IllegalTransition(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	svc := NewOrderService(orderRepo, new(MockProductRepository), new(MockAddressRepository), nil, nil)

	orderRepo.On("GetByID", uint(1001)).Return(&entity.Order{ID: 1001, Status: entity.OrderStatusDelivered}, nil)

	_, err := svc.UpdateStatus(1001, entity.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUpdateStatus_UnknownStatus(t *testing.T) {
	svc := NewOrderService(new(MockOrderRepository), new(MockProductRepository), new(MockAddressRepository), nil, nil)

	_, err := svc.UpdateStatus(1001, "returned")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// ============================================================================
// GetForUser
// ============================================================================

func TestOrderGetForUser_OwnershipEnforced(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	svc := NewOrderService(orderRepo, new(MockProductRepository), new(MockAddressRepository), nil, nil)

	orderRepo.On("GetByID", uint(1001)).Return(&entity.Order{ID: 1001, UserID: 2}, nil)

	// Чужой заказ выглядит как несуществующий
	_, err := svc.GetForUser(1001, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	order, err := svc.GetForUser(1001, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(1001), order.ID)
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number := generateOrderNumber()
		assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, number)
		assert.False(t, seen[number], "order numbers should not repeat")
		seen[number] = true
	}
}
