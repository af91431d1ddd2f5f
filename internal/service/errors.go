package service

import "errors"

// OTP flow specific errors used by handlers for stable error_type mapping.
var (
	ErrInvalidPhoneNumber = errors.New("invalid_phone_number")
	ErrDeliveryFailed     = errors.New("otp_delivery_failed")
	ErrNoActiveChallenge  = errors.New("no_active_challenge")
	ErrChallengeConsumed  = errors.New("challenge_already_verified")
	ErrChallengeExpired   = errors.New("challenge_expired")
	ErrCodeMismatch       = errors.New("code_mismatch")
	ErrAttemptsExceeded   = errors.New("verification_attempts_exceeded")
	ErrResendCooldown     = errors.New("resend_cooldown")
)

// Order flow specific errors.
var (
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrEmptyOrder        = errors.New("order_has_no_items")
)
