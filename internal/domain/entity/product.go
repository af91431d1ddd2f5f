package entity

import "time"

// Product — товар каталога.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:100;index" json:"category"`
	Price       int64     `gorm:"not null" json:"price"` // В минимальных единицах валюты (пайсы)
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Image       string    `gorm:"size:255" json:"image"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) InStock(quantity int) bool {
	return p.Stock >= quantity
}
