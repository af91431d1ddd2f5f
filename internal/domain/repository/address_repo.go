package repository

import "github.com/yourusername/storefront-api/internal/domain/entity"

// AddressRepository persists user shipping addresses.
type AddressRepository interface {
	Create(address *entity.Address) error
	GetByID(id, userID uint) (*entity.Address, error)
	ListByUserID(userID uint) ([]entity.Address, error)
	Update(address *entity.Address) error
	// SetDefault marks one address as default and clears the flag on the
	// user's other addresses in the same transaction.
	SetDefault(id, userID uint) error
	// Delete removes the address; if it was the default, the most recently
	// created remaining address is promoted.
	Delete(id, userID uint) error
}
