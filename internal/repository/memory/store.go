// internal/repository/memory/store.go

// Package memory is an in-process implementation of the repository
// interfaces with snapshot-rollback transactions. It backs the service
// tests that exercise concurrent commits and doubles as a local
// development store.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"

	"github.com/shopspring/decimal"
)

type walletKey struct {
	payerID int64
	channel domain.FundingChannel
}

// Store holds all engine state behind a single mutex. A transaction owns
// the mutex from Begin until Commit or Rollback, so two concurrent
// commits against the same product or wallet are fully serialized.
type Store struct {
	mu sync.Mutex

	nextProductID int64
	nextWalletID  int64
	nextSaleID    int64
	nextLineID    int64
	nextAccrualID int64

	products   map[int64]*domain.Product
	wallets    map[walletKey]*domain.Wallet
	intents    map[string]*domain.PaymentIntent
	challenges map[string]*domain.Challenge
	sales      map[string]*domain.Sale // keyed by idempotency token
	accruals   []*domain.RewardAccrual
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products:   make(map[int64]*domain.Product),
		wallets:    make(map[walletKey]*domain.Wallet),
		intents:    make(map[string]*domain.PaymentIntent),
		challenges: make(map[string]*domain.Challenge),
		sales:      make(map[string]*domain.Sale),
	}
}

// Tx is an in-memory transaction. It satisfies db.TxController and is
// passed to repository methods in place of a SQL executor.
type Tx struct {
	store    *Store
	snapshot *Store
	done     bool
}

// Begin opens a transaction, locking the store until it resolves.
func (s *Store) Begin() *Tx {
	s.mu.Lock()
	return &Tx{store: s, snapshot: s.clone()}
}

// Commit releases the store, keeping all changes.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// Rollback restores the pre-transaction snapshot and releases the store.
// Safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.restore(t.snapshot)
	t.store.mu.Unlock()
	return nil
}

// The SQL executor surface exists only so *Tx can be passed where a
// repository.DBExecutor is expected; the memory repositories never issue
// SQL through it.
func (t *Tx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	panic("memory.Tx does not execute SQL")
}
func (t *Tx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	panic("memory.Tx does not execute SQL")
}
func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	panic("memory.Tx does not execute SQL")
}
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	panic("memory.Tx does not execute SQL")
}

// lockFor takes the store lock unless the caller already owns it through
// an open transaction.
func (s *Store) lockFor(q repository.DBExecutor) func() {
	if _, ok := q.(*Tx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) clone() *Store {
	c := &Store{
		nextProductID: s.nextProductID,
		nextWalletID:  s.nextWalletID,
		nextSaleID:    s.nextSaleID,
		nextLineID:    s.nextLineID,
		nextAccrualID: s.nextAccrualID,
		products:      make(map[int64]*domain.Product, len(s.products)),
		wallets:       make(map[walletKey]*domain.Wallet, len(s.wallets)),
		intents:       make(map[string]*domain.PaymentIntent, len(s.intents)),
		challenges:    make(map[string]*domain.Challenge, len(s.challenges)),
		sales:         make(map[string]*domain.Sale, len(s.sales)),
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for k, w := range s.wallets {
		cw := *w
		c.wallets[k] = &cw
	}
	for id, i := range s.intents {
		ci := *i
		c.intents[id] = &ci
	}
	for id, ch := range s.challenges {
		cc := *ch
		c.challenges[id] = &cc
	}
	for token, sale := range s.sales {
		cs := *sale
		cs.Lines = append([]domain.SaleLine(nil), sale.Lines...)
		c.sales[token] = &cs
	}
	c.accruals = append([]*domain.RewardAccrual(nil), s.accruals...)
	return c
}

func (s *Store) restore(from *Store) {
	s.nextProductID = from.nextProductID
	s.nextWalletID = from.nextWalletID
	s.nextSaleID = from.nextSaleID
	s.nextLineID = from.nextLineID
	s.nextAccrualID = from.nextAccrualID
	s.products = from.products
	s.wallets = from.wallets
	s.intents = from.intents
	s.challenges = from.challenges
	s.sales = from.sales
	s.accruals = from.accruals
}

// ProductRepository

func (s *Store) CreateProduct(ctx context.Context, q repository.DBExecutor, product *domain.Product) error {
	defer s.lockFor(q)()
	s.nextProductID++
	product.ID = s.nextProductID
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *Store) GetProductByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Product, error) {
	defer s.lockFor(q)()
	p, ok := s.products[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DecrementStock(ctx context.Context, q repository.DBExecutor, productID, quantity int64) error {
	defer s.lockFor(q)()
	p, ok := s.products[productID]
	if !ok {
		return util.ErrNotFound
	}
	if p.StockQuantity < quantity {
		return util.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// WalletRepository

func (s *Store) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	defer s.lockFor(q)()
	s.nextWalletID++
	wallet.ID = s.nextWalletID
	cw := *wallet
	s.wallets[walletKey{wallet.PayerID, wallet.Channel}] = &cw
	return nil
}

func (s *Store) GetWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel) (*domain.Wallet, error) {
	defer s.lockFor(q)()
	w, ok := s.wallets[walletKey{payerID, channel}]
	if !ok {
		return nil, util.ErrNotFound
	}
	cw := *w
	return &cw, nil
}

func (s *Store) DebitWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error {
	defer s.lockFor(q)()
	w, ok := s.wallets[walletKey{payerID, channel}]
	if !ok {
		return util.ErrNotFound
	}
	if w.Balance.LessThan(amount) {
		return util.ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CreditWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error {
	defer s.lockFor(q)()
	w, ok := s.wallets[walletKey{payerID, channel}]
	if !ok {
		return util.ErrNotFound
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// IntentRepository

func (s *Store) CreateIntent(ctx context.Context, q repository.DBExecutor, intent *domain.PaymentIntent) error {
	defer s.lockFor(q)()
	ci := *intent
	s.intents[intent.ID] = &ci
	return nil
}

func (s *Store) GetIntentByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.PaymentIntent, error) {
	defer s.lockFor(q)()
	i, ok := s.intents[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	ci := *i
	return &ci, nil
}

func (s *Store) UpdateIntentState(ctx context.Context, q repository.DBExecutor, id string, status domain.IntentStatus, state domain.ChallengeState, denyReason *string) error {
	defer s.lockFor(q)()
	i, ok := s.intents[id]
	if !ok {
		return util.ErrNotFound
	}
	i.Status = status
	i.ChallengeState = state
	i.DenyReason = denyReason
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// ChallengeRepository

func (s *Store) CreateChallenge(ctx context.Context, q repository.DBExecutor, challenge *domain.Challenge) error {
	defer s.lockFor(q)()
	cc := *challenge
	s.challenges[challenge.ID] = &cc
	return nil
}

func (s *Store) GetChallengeByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Challenge, error) {
	defer s.lockFor(q)()
	c, ok := s.challenges[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *Store) GetChallengeByProviderRef(ctx context.Context, q repository.DBExecutor, providerRef string) (*domain.Challenge, error) {
	defer s.lockFor(q)()
	for _, c := range s.challenges {
		if c.ProviderRef != nil && *c.ProviderRef == providerRef {
			cc := *c
			return &cc, nil
		}
	}
	return nil, util.ErrNotFound
}

func (s *Store) MarkConsumed(ctx context.Context, q repository.DBExecutor, id string, at time.Time) error {
	defer s.lockFor(q)()
	c, ok := s.challenges[id]
	if !ok {
		return util.ErrNotFound
	}
	if c.Status != domain.ChallengeStatusPending {
		return util.ErrAlreadyConsumed
	}
	c.Status = domain.ChallengeStatusConsumed
	consumed := at
	c.ConsumedAt = &consumed
	return nil
}

func (s *Store) UpdateChallengeStatus(ctx context.Context, q repository.DBExecutor, id string, status domain.ChallengeStatus) error {
	defer s.lockFor(q)()
	c, ok := s.challenges[id]
	if !ok {
		return util.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *Store) IncrementAttempts(ctx context.Context, q repository.DBExecutor, id string) (int, error) {
	defer s.lockFor(q)()
	c, ok := s.challenges[id]
	if !ok {
		return 0, util.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

// SaleRepository

func (s *Store) CreateSale(ctx context.Context, q repository.DBExecutor, sale *domain.Sale) error {
	defer s.lockFor(q)()
	if _, exists := s.sales[sale.IdempotencyToken]; exists {
		return util.ErrDuplicateEntry
	}
	s.nextSaleID++
	sale.ID = s.nextSaleID
	for i := range sale.Lines {
		s.nextLineID++
		sale.Lines[i].ID = s.nextLineID
		sale.Lines[i].SaleID = sale.ID
	}
	cs := *sale
	cs.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	s.sales[sale.IdempotencyToken] = &cs
	return nil
}

func (s *Store) GetSaleByToken(ctx context.Context, q repository.DBExecutor, token string) (*domain.Sale, error) {
	defer s.lockFor(q)()
	sale, ok := s.sales[token]
	if !ok {
		return nil, util.ErrNotFound
	}
	cs := *sale
	cs.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	return &cs, nil
}

func (s *Store) GetSaleByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Sale, error) {
	defer s.lockFor(q)()
	for _, sale := range s.sales {
		if sale.Reference == reference {
			cs := *sale
			cs.Lines = append([]domain.SaleLine(nil), sale.Lines...)
			return &cs, nil
		}
	}
	return nil, util.ErrNotFound
}

func (s *Store) CreateRewardAccrual(ctx context.Context, q repository.DBExecutor, accrual *domain.RewardAccrual) error {
	defer s.lockFor(q)()
	s.nextAccrualID++
	accrual.ID = s.nextAccrualID
	ca := *accrual
	s.accruals = append(s.accruals, &ca)
	return nil
}

// RewardAccruals returns a copy of all recorded accruals, for tests.
func (s *Store) RewardAccruals() []domain.RewardAccrual {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RewardAccrual, 0, len(s.accruals))
	for _, a := range s.accruals {
		out = append(out, *a)
	}
	return out
}
