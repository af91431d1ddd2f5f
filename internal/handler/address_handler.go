package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
	"github.com/yourusername/storefront-api/internal/service"
)

// AddressHandler обрабатывает запросы к адресам доставки пользователя
type AddressHandler struct {
	addressService *service.AddressService
}

// NewAddressHandler создает новый обработчик адресов
func NewAddressHandler(addressService *service.AddressService) *AddressHandler {
	return &AddressHandler{addressService: addressService}
}

// List возвращает все адреса текущего пользователя
func (h *AddressHandler) List(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	addresses, err := h.addressService.List(userID)
	if err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses, "count": len(addresses)})
}

// Get возвращает один адрес текущего пользователя
func (h *AddressHandler) Get(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	addressID := c.MustGet("addressID").(uint)

	address, err := h.addressService.Get(addressID, userID)
	if err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

// Create добавляет новый адрес
func (h *AddressHandler) Create(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var input service.AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_request"})
		return
	}

	address, err := h.addressService.Create(userID, input)
	if err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusCreated, address)
}

// Update изменяет существующий адрес
func (h *AddressHandler) Update(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	addressID := c.MustGet("addressID").(uint)

	var input service.AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_request"})
		return
	}

	address, err := h.addressService.Update(addressID, userID, input)
	if err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

// SetDefault делает адрес адресом по умолчанию
func (h *AddressHandler) SetDefault(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	addressID := c.MustGet("addressID").(uint)

	if err := h.addressService.SetDefault(addressID, userID); err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Default address updated"})
}

// Delete удаляет адрес
func (h *AddressHandler) Delete(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	addressID := c.MustGet("addressID").(uint)

	if err := h.addressService.Delete(addressID, userID); err != nil {
		h.handleAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

func (h *AddressHandler) handleAddressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
