package repository

import "github.com/yourusername/storefront-api/internal/domain/entity"

// OtpChallengeRepository persists OTP challenges keyed by phone number.
type OtpChallengeRepository interface {
	// Replace atomically deletes any existing challenge for the phone and
	// inserts the new one (supersession).
	Replace(challenge *entity.OtpChallenge) error
	GetByPhone(phone string) (*entity.OtpChallenge, error)
	IncrementAttempts(id uint) error
	// MarkVerified sets verified_at once; returns false if the challenge was
	// already verified by a concurrent request.
	MarkVerified(id uint) (bool, error)
	Delete(id uint) error
	DeleteExpired() (int64, error)
}
