package repository

import "github.com/yourusername/storefront-api/internal/domain/entity"

// UserRepository persists storefront customers.
type UserRepository interface {
	// GetOrCreateByPhone returns the user owning the phone number, creating
	// the account on first verification.
	GetOrCreateByPhone(phone string) (*entity.User, error)
	GetByID(id uint) (*entity.User, error)
	UpdateProfile(id uint, name, email string) error
}
