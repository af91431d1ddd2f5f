package entity

import "time"

// Статусы заказа
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// allowedOrderTransitions задаёт допустимые переходы статусов.
// delivered и cancelled — терминальные.
var allowedOrderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// IsValidOrderStatus проверяет, что строка — известный статус заказа.
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода из текущего статуса.
func (o *Order) CanTransitionTo(status string) bool {
	for _, next := range allowedOrderTransitions[o.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// Order — заказ покупателя. Адрес доставки копируется в заказ на момент
// оформления, чтобы последующее редактирование адреса не меняло историю.
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Number        string      `gorm:"size:20;not null;uniqueIndex" json:"number"`
	UserID        uint        `gorm:"not null;index" json:"user_id"`
	CustomerName  string      `gorm:"size:100;not null" json:"customer_name"`
	CustomerEmail string      `gorm:"size:100;not null" json:"customer_email"`
	CustomerPhone string      `gorm:"size:15" json:"customer_phone"`
	ShipAddress   string      `gorm:"size:500;not null" json:"ship_address"`
	Status        string      `gorm:"size:20;not null;default:pending;index" json:"status"`
	Total         int64       `gorm:"not null" json:"total"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem — позиция заказа со снимком цены на момент покупки.
type OrderItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   uint   `gorm:"not null;index" json:"order_id"`
	ProductID uint   `gorm:"not null" json:"product_id"`
	Name      string `gorm:"size:200;not null" json:"name"`
	UnitPrice int64  `gorm:"not null" json:"unit_price"`
	Quantity  int    `gorm:"not null" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
