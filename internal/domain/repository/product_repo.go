package repository

import "github.com/yourusername/storefront-api/internal/domain/entity"

// ProductFilters — фильтры списка товаров
type ProductFilters struct {
	Category string
	Search   string
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Create(product *entity.Product) error
	GetByID(id uint) (*entity.Product, error)
	ListWithFilters(filters ProductFilters, limit, offset int) ([]entity.Product, int64, error)
	Update(product *entity.Product) error
	Delete(id uint) error
}
