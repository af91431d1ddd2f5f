package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

// ============================================================================
// Моки для тестирования OtpService
// ============================================================================

// MockOtpChallengeRepository реализует repository.OtpChallengeRepository
type MockOtpChallengeRepository struct {
	mock.Mock
}

func (m *MockOtpChallengeRepository) Replace(challenge *entity.OtpChallenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockOtpChallengeRepository) GetByPhone(phone string) (*entity.OtpChallenge, error) {
	args := m.Called(phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.OtpChallenge), args.Error(1)
}

func (m *MockOtpChallengeRepository) IncrementAttempts(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockOtpChallengeRepository) MarkVerified(id uint) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockOtpChallengeRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockOtpChallengeRepository) DeleteExpired() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

// MockSMSService реализует SMSService и запоминает отправленные сообщения
type MockSMSService struct {
	mock.Mock
}

func (m *MockSMSService) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

func newTestOtpService(t *testing.T, repo *MockOtpChallengeRepository, sms *MockSMSService) *OtpService {
	t.Helper()
	svc, err := NewOtpService(repo, sms, "+91", 5*time.Minute, 60*time.Second, 5, "test-pepper", 10*time.Second)
	require.NoError(t, err)
	return svc
}

// makeChallenge создаёт челлендж с известным кодом (хеш считается как в сервисе)
func makeChallenge(phone, code string, expiresAt time.Time) *entity.OtpChallenge {
	salt := "00112233445566778899aabbccddeeff"
	return &entity.OtpChallenge{
		ID:          7,
		Phone:       phone,
		CodeHash:    hashOtpCode(code, salt, "test-pepper"),
		CodeSalt:    salt,
		ExpiresAt:   expiresAt,
		MaxAttempts: 5,
		LastSentAt:  expiresAt.Add(-5 * time.Minute),
	}
}

// ============================================================================
// IssueChallenge
// ============================================================================

func TestIssueChallenge_InvalidPhone_NoSideEffects(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	for _, phone := range []string{"1234567890", "987654321", "", "+919876543210", "abcdefghij"} {
		err := svc.IssueChallenge(context.Background(), phone)
		assert.ErrorIs(t, err, ErrInvalidPhoneNumber, phone)
	}

	repo.AssertNotCalled(t, "Replace", mock.Anything)
	sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueChallenge_PersistsAndSends(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	repo.On("GetByPhone", "9876543210").Return(nil, apperrors.ErrNotFound)

	var persisted *entity.OtpChallenge
	repo.On("Replace", mock.AnythingOfType("*entity.OtpChallenge")).Run(func(args mock.Arguments) {
		persisted = args.Get(0).(*entity.OtpChallenge)
		persisted.ID = 42
	}).Return(nil)

	var sentTo, sentBody string
	sms.On("Send", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			sentTo = args.String(1)
			sentBody = args.String(2)
		}).Return("SM123", nil)

	err := svc.IssueChallenge(context.Background(), "9876543210")
	require.NoError(t, err)

	require.NotNil(t, persisted)
	assert.Equal(t, "9876543210", persisted.Phone)
	assert.Equal(t, 5, persisted.MaxAttempts)
	assert.Equal(t, 0, persisted.AttemptCount)
	assert.Nil(t, persisted.VerifiedAt)
	assert.Equal(t, now.Add(5*time.Minute), persisted.ExpiresAt)
	assert.Len(t, persisted.CodeHash, 64)  // hex sha256
	assert.NotEmpty(t, persisted.CodeSalt) // Код хранится только хешированным

	assert.Equal(t, "+919876543210", sentTo)
	assert.Regexp(t, `^Your OTP is \d{6}\. It is valid for 5 minutes\.$`, sentBody)

	// Код из SMS действительно соответствует сохранённому хешу
	code := sentBody[12:18]
	assert.Equal(t, persisted.CodeHash, hashOtpCode(code, persisted.CodeSalt, "test-pepper"))
}

func TestIssueChallenge_DeliveryFailure_RollsBack(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	repo.On("GetByPhone", "9876543210").Return(nil, apperrors.ErrNotFound)
	repo.On("Replace", mock.AnythingOfType("*entity.OtpChallenge")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.OtpChallenge).ID = 42
	}).Return(nil)
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)
	repo.On("Delete", uint(42)).Return(nil)

	err := svc.IssueChallenge(context.Background(), "9876543210")
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	// Fail-closed: недоставленный челлендж удалён
	repo.AssertCalled(t, "Delete", uint(42))
}

func TestIssueChallenge_CooldownLookupFailure_Surfaces(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	repo.On("GetByPhone", "9876543210").Return(nil, assert.AnError)

	err := svc.IssueChallenge(context.Background(), "9876543210")
	assert.ErrorIs(t, err, assert.AnError)

	// Отказ хранилища не превращается в пропуск cooldown-проверки
	repo.AssertNotCalled(t, "Replace", mock.Anything)
	sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateOtpCode_Range(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateOtpCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestIssueChallenge_ResendCooldown(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	existing := makeChallenge("9876543210", "123456", now.Add(4*time.Minute))
	existing.LastSentAt = now.Add(-30 * time.Second) // Кулдаун 60s ещё не истёк
	repo.On("GetByPhone", "9876543210").Return(existing, nil)

	err := svc.IssueChallenge(context.Background(), "9876543210")
	assert.ErrorIs(t, err, ErrResendCooldown)

	repo.AssertNotCalled(t, "Replace", mock.Anything)
	sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueChallenge_AfterCooldown_Supersedes(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	existing := makeChallenge("9876543210", "123456", now.Add(2*time.Minute))
	existing.LastSentAt = now.Add(-2 * time.Minute)
	repo.On("GetByPhone", "9876543210").Return(existing, nil)
	repo.On("Replace", mock.AnythingOfType("*entity.OtpChallenge")).Return(nil)
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("SM124", nil)

	err := svc.IssueChallenge(context.Background(), "9876543210")
	require.NoError(t, err)

	repo.AssertCalled(t, "Replace", mock.AnythingOfType("*entity.OtpChallenge"))
}

// ============================================================================
// VerifyChallenge
// ============================================================================

func TestVerifyChallenge_NoActiveChallenge(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	repo.On("GetByPhone", "9876543210").Return(nil, apperrors.ErrNotFound)

	result, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
	assert.Nil(t, result)
}

func TestVerifyChallenge_Expired_EvenWithCorrectCode(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	// Код верный, но окно истекло
	challenge := makeChallenge("9876543210", "123456", now.Add(-time.Second))
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)

	result, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrChallengeExpired)
	assert.Nil(t, result)
	repo.AssertNotCalled(t, "MarkVerified", mock.Anything)
}

func TestVerifyChallenge_ExpiryBoundary(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	// now == expiresAt считается истёкшим (now < expiresAt — условие живости)
	challenge := makeChallenge("9876543210", "123456", now)
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)

	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyChallenge_CodeMismatch_IncrementsAttempts(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)
	repo.On("IncrementAttempts", uint(7)).Return(nil)

	result, err := svc.VerifyChallenge(context.Background(), "9876543210", "654321")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	require.NotNil(t, result)
	assert.False(t, result.Verified)
	assert.Equal(t, 4, result.AttemptsLeft)
	repo.AssertCalled(t, "IncrementAttempts", uint(7))
	repo.AssertNotCalled(t, "MarkVerified", mock.Anything)
}

func TestVerifyChallenge_LastMismatchExhaustsAttempts(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	challenge.AttemptCount = 4 // Осталась одна попытка
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)
	repo.On("IncrementAttempts", uint(7)).Return(nil)

	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "654321")
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
}

func TestVerifyChallenge_AttemptsAlreadyExhausted(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	challenge.AttemptCount = 5
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)

	// Даже верный код не проходит после исчерпания попыток
	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	repo.AssertNotCalled(t, "IncrementAttempts", mock.Anything)
	repo.AssertNotCalled(t, "MarkVerified", mock.Anything)
}

func TestVerifyChallenge_Success(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)
	repo.On("MarkVerified", uint(7)).Return(true, nil)

	result, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Verified)
	assert.Equal(t, "9876543210", result.Phone)
}

func TestVerifyChallenge_ReplayRejected(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	// Челлендж уже verified — повторная проверка с верным кодом не проходит
	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	verifiedAt := now.Add(-time.Minute)
	challenge.VerifiedAt = &verifiedAt
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)

	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrChallengeConsumed)
	repo.AssertNotCalled(t, "MarkVerified", mock.Anything)
}

func TestVerifyChallenge_ConcurrentVerifyLoses(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	challenge := makeChallenge("9876543210", "123456", now.Add(3*time.Minute))
	repo.On("GetByPhone", "9876543210").Return(challenge, nil)
	// Guarded UPDATE не нашёл строку с verified_at IS NULL
	repo.On("MarkVerified", uint(7)).Return(false, nil)

	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrChallengeConsumed)
}

func TestVerifyChallenge_SupersededCodeFails(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	now := time.Now()
	svc.now = func() time.Time { return now }

	// После повторной выдачи для номера хранится хеш нового кода;
	// проверка со старым кодом — обычный mismatch
	current := makeChallenge("9876543210", "999999", now.Add(5*time.Minute))
	repo.On("GetByPhone", "9876543210").Return(current, nil)
	repo.On("IncrementAttempts", uint(7)).Return(nil)

	_, err := svc.VerifyChallenge(context.Background(), "9876543210", "123456")
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestVerifyChallenge_InputValidation(t *testing.T) {
	repo := new(MockOtpChallengeRepository)
	sms := new(MockSMSService)
	svc := newTestOtpService(t, repo, sms)

	_, err := svc.VerifyChallenge(context.Background(), "1234567890", "123456")
	assert.ErrorIs(t, err, ErrInvalidPhoneNumber)

	_, err = svc.VerifyChallenge(context.Background(), "9876543210", "12345")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	repo.AssertNotCalled(t, "GetByPhone", mock.Anything)
}

// ============================================================================
// Генерация кода
// ============================================================================

func TestGenerateOtpCode_SixDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateOtpCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestHashOtpCode_Deterministic(t *testing.T) {
	h1 := hashOtpCode("123456", "salt", "pepper")
	h2 := hashOtpCode("123456", "salt", "pepper")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	// Любая компонента меняет хеш
	assert.NotEqual(t, h1, hashOtpCode("123457", "salt", "pepper"))
	assert.NotEqual(t, h1, hashOtpCode("123456", "salt2", "pepper"))
	assert.NotEqual(t, h1, hashOtpCode("123456", "salt", "pepper2"))
}
