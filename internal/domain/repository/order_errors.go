package repository

import "errors"

// Ошибки уровня репозитория заказов
var (
	// ErrInsufficientStock возвращается, когда на складе не хватает товара
	// для одной из позиций заказа.
	ErrInsufficientStock = errors.New("insufficient stock")
)
