package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

// ProfileHandler отдаёт и обновляет профиль покупателя из сессии
type ProfileHandler struct {
	userRepo repository.UserRepository
}

func NewProfileHandler(userRepo repository.UserRepository) *ProfileHandler {
	return &ProfileHandler{userRepo: userRepo}
}

// UpdateProfileRequest представляет запрос на обновление профиля
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// Me возвращает профиль текущего покупателя
func (h *ProfileHandler) Me(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update обновляет имя и email текущего покупателя
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and a valid email are required", "error_type": "validation_error"})
		return
	}

	if err := h.userRepo.UpdateProfile(userID, req.Name, req.Email); err != nil {
		h.handleProfileError(c, err)
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *ProfileHandler) handleProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "error_type": "not_found"})
	default:
		log.Printf("[ProfileHandler] error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
