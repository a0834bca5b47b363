// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/provider"
	"tapcash-pos/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockIntentRepository is a mock implementation of repository.IntentRepository.
type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) CreateIntent(ctx context.Context, q repository.DBExecutor, intent *domain.PaymentIntent) error {
	args := m.Called(ctx, q, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) GetIntentByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *MockIntentRepository) UpdateIntentState(ctx context.Context, q repository.DBExecutor, id string, status domain.IntentStatus, state domain.ChallengeState, denyReason *string) error {
	args := m.Called(ctx, q, id, status, state, denyReason)
	return args.Error(0)
}

// MockChallengeRepository is a mock implementation of repository.ChallengeRepository.
type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) CreateChallenge(ctx context.Context, q repository.DBExecutor, challenge *domain.Challenge) error {
	args := m.Called(ctx, q, challenge)
	return args.Error(0)
}

func (m *MockChallengeRepository) GetChallengeByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Challenge, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) GetChallengeByProviderRef(ctx context.Context, q repository.DBExecutor, providerRef string) (*domain.Challenge, error) {
	args := m.Called(ctx, q, providerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) MarkConsumed(ctx context.Context, q repository.DBExecutor, id string, at time.Time) error {
	args := m.Called(ctx, q, id, at)
	return args.Error(0)
}

func (m *MockChallengeRepository) UpdateChallengeStatus(ctx context.Context, q repository.DBExecutor, id string, status domain.ChallengeStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

func (m *MockChallengeRepository) IncrementAttempts(ctx context.Context, q repository.DBExecutor, id string) (int, error) {
	args := m.Called(ctx, q, id)
	return args.Int(0), args.Error(1)
}

// MockPinVerifier is a mock implementation of provider.PinVerifier.
type MockPinVerifier struct {
	mock.Mock
}

func (m *MockPinVerifier) VerifyPin(ctx context.Context, cardID, pin string) (provider.PinVerdict, error) {
	args := m.Called(ctx, cardID, pin)
	return args.Get(0).(provider.PinVerdict), args.Error(1)
}

// MockSMSDispatcher is a mock implementation of provider.SMSDispatcher.
type MockSMSDispatcher struct {
	mock.Mock
}

func (m *MockSMSDispatcher) SendSMS(ctx context.Context, phone, message string) error {
	args := m.Called(ctx, phone, message)
	return args.Error(0)
}

// MockMobileMoneyClient is a mock implementation of provider.MobileMoneyClient.
type MockMobileMoneyClient struct {
	mock.Mock
}

func (m *MockMobileMoneyClient) RequestPush(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	args := m.Called(ctx, phone, amount, reference)
	return args.String(0), args.Error(1)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implicitly implements repository.DBExecutor for testing purposes
// by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor // Embed MockDBExecutor to satisfy repository.DBExecutor interface
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}
