package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

const otpMessageTemplate = "Your OTP is %s. It is valid for %d minutes."

// OtpVerifyResult reports the outcome of a verification attempt.
type OtpVerifyResult struct {
	Phone        string `json:"phone"`
	Verified     bool   `json:"verified"`
	AttemptsLeft int    `json:"attempts_left"`
}

// OtpService issues and verifies one-time passcodes bound to phone numbers.
type OtpService struct {
	challengeRepo  repository.OtpChallengeRepository
	smsService     SMSService
	countryPrefix  string
	ttl            time.Duration
	resendCooldown time.Duration
	maxAttempts    int
	codePepper     string
	smsTimeout     time.Duration
	now            func() time.Time
}

func NewOtpService(
	challengeRepo repository.OtpChallengeRepository,
	smsService SMSService,
	countryPrefix string,
	ttl time.Duration,
	resendCooldown time.Duration,
	maxAttempts int,
	codePepper string,
	smsTimeout time.Duration,
) (*OtpService, error) {
	if challengeRepo == nil {
		return nil, fmt.Errorf("otp challenge repository is required")
	}
	if smsService == nil {
		return nil, fmt.Errorf("sms service is required")
	}
	if countryPrefix == "" {
		countryPrefix = "+91"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if resendCooldown <= 0 {
		resendCooldown = 60 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if smsTimeout <= 0 {
		smsTimeout = 10 * time.Second
	}

	return &OtpService{
		challengeRepo:  challengeRepo,
		smsService:     smsService,
		countryPrefix:  countryPrefix,
		ttl:            ttl,
		resendCooldown: resendCooldown,
		maxAttempts:    maxAttempts,
		codePepper:     codePepper,
		smsTimeout:     smsTimeout,
		now:            time.Now,
	}, nil
}

// IssueChallenge выдаёт новый код для номера. Прежний челлендж для этого
// номера замещается атомарно; при отказе доставки свежая запись удаляется
// (fail-closed), чтобы не существовало «живого» кода, который никто не получал.
func (s *OtpService) IssueChallenge(ctx context.Context, phone string) error {
	if !entity.IsValidPhone(phone) {
		return fmt.Errorf("%w: phone must be 10 digits starting with 6-9", ErrInvalidPhoneNumber)
	}

	now := s.now()
	existing, err := s.challengeRepo.GetByPhone(phone)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to check existing challenge: %w", err)
	}
	if existing != nil && !existing.IsVerified() {
		if now.Before(existing.LastSentAt.Add(s.resendCooldown)) {
			return fmt.Errorf("%w: please wait before requesting a new code", ErrResendCooldown)
		}
	}

	code, err := generateOtpCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp code: %w", err)
	}
	salt, err := generateOtpSalt()
	if err != nil {
		return fmt.Errorf("failed to generate otp salt: %w", err)
	}

	challenge := &entity.OtpChallenge{
		Phone:        phone,
		CodeHash:     hashOtpCode(code, salt, s.codePepper),
		CodeSalt:     salt,
		ExpiresAt:    now.Add(s.ttl),
		AttemptCount: 0,
		MaxAttempts:  s.maxAttempts,
		LastSentAt:   now,
	}
	if err := s.challengeRepo.Replace(challenge); err != nil {
		return err
	}

	// Значение кода в лог не попадает никогда — только номер и id челленджа.
	log.Printf("[OtpService] issued challenge #%d for phone=%s", challenge.ID, phone)

	sendCtx, cancel := context.WithTimeout(ctx, s.smsTimeout)
	defer cancel()

	body := fmt.Sprintf(otpMessageTemplate, code, int(s.ttl.Minutes()))
	if _, err := s.smsService.Send(sendCtx, s.countryPrefix+phone, body); err != nil {
		log.Printf("[OtpService] delivery failed for challenge #%d: %v", challenge.ID, err)
		// Fail-closed: без доставленного кода живой челлендж не оставляем
		if delErr := s.challengeRepo.Delete(challenge.ID); delErr != nil {
			log.Printf("[OtpService] failed to roll back challenge #%d: %v", challenge.ID, delErr)
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

// VerifyChallenge проверяет код для номера. Возвращает результат с числом
// оставшихся попыток; терминальные состояния (verified, expired, superseded)
// повторно не проверяются.
func (s *OtpService) VerifyChallenge(ctx context.Context, phone, submittedCode string) (*OtpVerifyResult, error) {
	if !entity.IsValidPhone(phone) {
		return nil, fmt.Errorf("%w: phone must be 10 digits starting with 6-9", ErrInvalidPhoneNumber)
	}
	submittedCode = strings.TrimSpace(submittedCode)
	if len(submittedCode) != 6 {
		return nil, fmt.Errorf("%w: code must be 6 digits", apperrors.ErrValidation)
	}

	challenge, err := s.challengeRepo.GetByPhone(phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrNoActiveChallenge
		}
		return nil, err
	}

	now := s.now()
	if challenge.IsVerified() {
		// Replay: уже использованный код не проверяется повторно
		return nil, ErrChallengeConsumed
	}
	if challenge.IsExpired(now) {
		return nil, ErrChallengeExpired
	}
	if challenge.AttemptsExhausted() {
		return nil, ErrAttemptsExceeded
	}

	expectedHash := hashOtpCode(submittedCode, challenge.CodeSalt, s.codePepper)
	if subtle.ConstantTimeCompare([]byte(expectedHash), []byte(challenge.CodeHash)) != 1 {
		if err := s.challengeRepo.IncrementAttempts(challenge.ID); err != nil {
			log.Printf("[OtpService] failed to increment attempts for challenge #%d: %v", challenge.ID, err)
		}
		if challenge.AttemptCount+1 >= challenge.MaxAttempts {
			return nil, ErrAttemptsExceeded
		}
		return &OtpVerifyResult{
			Phone:        phone,
			Verified:     false,
			AttemptsLeft: challenge.MaxAttempts - challenge.AttemptCount - 1,
		}, ErrCodeMismatch
	}

	ok, err := s.challengeRepo.MarkVerified(challenge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	if !ok {
		// Конкурентная проверка успела раньше
		return nil, ErrChallengeConsumed
	}

	log.Printf("[OtpService] challenge #%d verified for phone=%s", challenge.ID, phone)

	return &OtpVerifyResult{
		Phone:        phone,
		Verified:     true,
		AttemptsLeft: challenge.AttemptsLeft(),
	}, nil
}

// PurgeExpired удаляет истёкшие и использованные челленджи.
func (s *OtpService) PurgeExpired() (int64, error) {
	return s.challengeRepo.DeleteExpired()
}

// generateOtpCode возвращает код, равномерно распределённый в [100000, 999999].
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 100000+n.Int64()), nil
}

func generateOtpSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashOtpCode(code, salt, pepper string) string {
	sum := sha256.Sum256([]byte(pepper + ":" + salt + ":" + code))
	return hex.EncodeToString(sum[:])
}
