package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
	"github.com/yourusername/storefront-api/internal/service"
)

// OtpHandler обрабатывает выдачу и проверку одноразовых кодов
type OtpHandler struct {
	otpService  *service.OtpService
	userRepo    repository.UserRepository
	tokenSecret string
	cookieName  string
	secureMode  bool
}

// NewOtpHandler создает новый обработчик OTP-аутентификации
func NewOtpHandler(otpService *service.OtpService, userRepo repository.UserRepository, tokenSecret, cookieName string, secureMode bool) *OtpHandler {
	return &OtpHandler{
		otpService:  otpService,
		userRepo:    userRepo,
		tokenSecret: tokenSecret,
		cookieName:  cookieName,
		secureMode:  secureMode,
	}
}

// Структуры запросов

// SendOtpRequest представляет запрос на отправку кода
type SendOtpRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyOtpRequest представляет запрос на проверку кода
type VerifyOtpRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// SendOtp выдаёт код для номера телефона и отправляет его по SMS
func (h *OtpHandler) SendOtp(c *gin.Context) {
	var req SendOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number is required", "error_type": "invalid_request"})
		return
	}

	if err := h.otpService.IssueChallenge(c.Request.Context(), req.Phone); err != nil {
		h.handleOtpError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "OTP sent successfully",
		"phone":   req.Phone,
	})
}

// VerifyOtp проверяет код; при успехе устанавливает сессионную куку
func (h *OtpHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone and code are required", "error_type": "invalid_request"})
		return
	}

	result, err := h.otpService.VerifyChallenge(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		h.handleOtpError(c, err, result)
		return
	}

	// Первая успешная верификация номера заводит аккаунт покупателя
	user, err := h.userRepo.GetOrCreateByPhone(result.Phone)
	if err != nil {
		log.Printf("[OtpHandler] failed to resolve user for phone=%s: %v", result.Phone, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session", "error_type": "internal_server_error"})
		return
	}

	token, err := h.issueSessionToken(user)
	if err != nil {
		log.Printf("[OtpHandler] failed to issue session token for user ID=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session", "error_type": "internal_server_error"})
		return
	}
	h.setSessionCookie(c, token)

	c.JSON(http.StatusOK, gin.H{
		"message":  "OTP verified successfully",
		"phone":    result.Phone,
		"verified": true,
	})
}

// issueSessionToken выписывает HS256 JWT сессии покупателя.
func (h *OtpHandler) issueSessionToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"user_id":  user.ID,
		"phone":    user.Phone,
		"is_admin": user.IsAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(30 * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.tokenSecret))
}

func (h *OtpHandler) setSessionCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   h.secureMode,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleOtpError транслирует ошибки OTP-сервиса в HTTP-ответы со стабильным
// error_type. Детали провайдера доставки наружу не отдаются.
func (h *OtpHandler) handleOtpError(c *gin.Context, err error, results ...*service.OtpVerifyResult) {
	var result *service.OtpVerifyResult
	if len(results) > 0 {
		result = results[0]
	}

	switch {
	case errors.Is(err, service.ErrInvalidPhoneNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number", "error_type": "invalid_phone_number"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
	case errors.Is(err, service.ErrResendCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Please wait before requesting a new OTP", "error_type": "resend_cooldown"})
	case errors.Is(err, service.ErrNoActiveChallenge):
		c.JSON(http.StatusNotFound, gin.H{"error": "No OTP requested for this number", "error_type": "no_active_challenge"})
	case errors.Is(err, service.ErrChallengeConsumed):
		c.JSON(http.StatusConflict, gin.H{"error": "OTP already used", "error_type": "challenge_already_verified"})
	case errors.Is(err, service.ErrChallengeExpired):
		c.JSON(http.StatusGone, gin.H{"error": "OTP expired, please request a new one", "error_type": "challenge_expired"})
	case errors.Is(err, service.ErrCodeMismatch):
		resp := gin.H{"error": "Incorrect OTP", "error_type": "code_mismatch"}
		if result != nil {
			resp["attempts_left"] = result.AttemptsLeft
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, service.ErrAttemptsExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many incorrect attempts, please request a new OTP", "error_type": "verification_attempts_exceeded"})
	case errors.Is(err, service.ErrDeliveryFailed):
		log.Printf("[OtpHandler] OTP delivery failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send OTP", "error_type": "otp_delivery_failed"})
	default:
		log.Printf("[OtpHandler] OTP error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
