package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// AddressInput — входные данные создания/обновления адреса
type AddressInput struct {
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Address   string `json:"address" binding:"required"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	Pincode   string `json:"pincode" binding:"required"`
	IsDefault bool   `json:"is_default"`
}

// AddressService предоставляет методы для работы с адресами доставки
type AddressService struct {
	addressRepo repository.AddressRepository
}

func NewAddressService(addressRepo repository.AddressRepository) *AddressService {
	return &AddressService{addressRepo: addressRepo}
}

func (s *AddressService) validate(input *AddressInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = strings.TrimSpace(input.Address)
	input.City = strings.TrimSpace(input.City)
	input.State = strings.TrimSpace(input.State)
	input.Pincode = strings.TrimSpace(input.Pincode)

	if input.Name == "" || input.Phone == "" || input.Address == "" ||
		input.City == "" || input.State == "" || input.Pincode == "" {
		return fmt.Errorf("%w: all fields are required", apperrors.ErrValidation)
	}
	if !pincodePattern.MatchString(input.Pincode) {
		return fmt.Errorf("%w: pincode must be 6 digits", apperrors.ErrValidation)
	}
	return nil
}

func (s *AddressService) Create(userID uint, input AddressInput) (*entity.Address, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	address := &entity.Address{
		UserID:    userID,
		Name:      input.Name,
		Phone:     input.Phone,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Pincode:   input.Pincode,
		IsDefault: input.IsDefault,
	}
	if err := s.addressRepo.Create(address); err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return address, nil
}

func (s *AddressService) Get(id, userID uint) (*entity.Address, error) {
	return s.addressRepo.GetByID(id, userID)
}

func (s *AddressService) List(userID uint) ([]entity.Address, error) {
	return s.addressRepo.ListByUserID(userID)
}

func (s *AddressService) Update(id, userID uint, input AddressInput) (*entity.Address, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	// Проверяем принадлежность адреса пользователю до изменения
	if _, err := s.addressRepo.GetByID(id, userID); err != nil {
		return nil, err
	}

	address := &entity.Address{
		ID:        id,
		UserID:    userID,
		Name:      input.Name,
		Phone:     input.Phone,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Pincode:   input.Pincode,
		IsDefault: input.IsDefault,
	}
	if err := s.addressRepo.Update(address); err != nil {
		return nil, err
	}
	return s.addressRepo.GetByID(id, userID)
}

func (s *AddressService) SetDefault(id, userID uint) error {
	return s.addressRepo.SetDefault(id, userID)
}

// Delete удаляет адрес. Если удалён адрес по умолчанию, самый свежий из
// оставшихся адресов пользователя становится новым адресом по умолчанию.
func (s *AddressService) Delete(id, userID uint) error {
	address, err := s.addressRepo.GetByID(id, userID)
	if err != nil {
		return err
	}
	if err := s.addressRepo.Delete(id, userID); err != nil {
		return err
	}
	if !address.IsDefault {
		return nil
	}

	remaining, err := s.addressRepo.ListByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to list remaining addresses: %w", err)
	}
	if len(remaining) == 0 {
		return nil
	}
	// Список отсортирован по created_at DESC (дефолта после удаления нет),
	// первый элемент — самый свежий.
	return s.addressRepo.SetDefault(remaining[0].ID, userID)
}
