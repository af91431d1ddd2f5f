package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

type OtpChallengeRepo struct {
	db *gorm.DB
}

func NewOtpChallengeRepo(db *gorm.DB) *OtpChallengeRepo {
	return &OtpChallengeRepo{db: db}
}

// Replace атомарно замещает челлендж для номера: удаление старой записи и
// вставка новой выполняются в одной транзакции, чтобы конкурентная проверка
// не наблюдала промежуточное состояние. Уникальный индекс по phone страхует
// от гонки двух одновременных выдач: проигравшая получает 23505.
func (r *OtpChallengeRepo) Replace(challenge *entity.OtpChallenge) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("phone = ?", challenge.Phone).
			Delete(&entity.OtpChallenge{}).Error; err != nil {
			return err
		}
		return tx.Create(challenge).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: concurrent challenge issue for phone", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to replace otp challenge: %w", err)
	}
	return nil
}

func (r *OtpChallengeRepo) GetByPhone(phone string) (*entity.OtpChallenge, error) {
	var challenge entity.OtpChallenge
	err := r.db.Where("phone = ?", phone).First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get otp challenge: %w", err)
	}
	return &challenge, nil
}

func (r *OtpChallengeRepo) IncrementAttempts(id uint) error {
	return r.db.Model(&entity.OtpChallenge{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkVerified переводит челлендж в терминальное состояние verified ровно
// один раз. Guarded UPDATE по verified_at IS NULL: RowsAffected == 0 значит,
// что конкурентная проверка успела раньше (защита от replay).
func (r *OtpChallengeRepo) MarkVerified(id uint) (bool, error) {
	now := time.Now()
	result := r.db.Model(&entity.OtpChallenge{}).
		Where("id = ? AND verified_at IS NULL", id).
		Update("verified_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark otp challenge verified: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *OtpChallengeRepo) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&entity.OtpChallenge{}).Error
}

// DeleteExpired удаляет истёкшие и уже использованные челленджи.
// Возвращает количество удалённых строк.
func (r *OtpChallengeRepo) DeleteExpired() (int64, error) {
	result := r.db.
		Where("expires_at < ? OR verified_at IS NOT NULL", time.Now()).
		Delete(&entity.OtpChallenge{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired otp challenges: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
