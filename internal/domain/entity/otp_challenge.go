package entity

import (
	"regexp"
	"time"
)

// phonePattern — национальный формат номера: 10 цифр, первая 6-9.
var phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// IsValidPhone проверяет номер телефона против национального формата.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// OtpChallenge stores a hashed one-time passcode bound to a phone number.
// A phone number has at most one challenge row at any time (unique index);
// issuing a new code replaces the previous row.
type OtpChallenge struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Phone        string     `gorm:"size:10;not null;uniqueIndex" json:"phone"`
	CodeHash     string     `gorm:"size:64;not null" json:"-"`
	CodeSalt     string     `gorm:"size:64;not null" json:"-"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"expires_at"`
	AttemptCount int        `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts  int        `gorm:"not null;default:5" json:"max_attempts"`
	LastSentAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_sent_at"`
	VerifiedAt   *time.Time `gorm:"index" json:"verified_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (OtpChallenge) TableName() string {
	return "otp_challenges"
}

func (o *OtpChallenge) IsVerified() bool {
	return o.VerifiedAt != nil
}

func (o *OtpChallenge) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *OtpChallenge) AttemptsExhausted() bool {
	return o.AttemptCount >= o.MaxAttempts
}

// AttemptsLeft возвращает оставшиеся попытки проверки (не меньше нуля).
func (o *OtpChallenge) AttemptsLeft() int {
	left := o.MaxAttempts - o.AttemptCount
	if left < 0 {
		return 0
	}
	return left
}
