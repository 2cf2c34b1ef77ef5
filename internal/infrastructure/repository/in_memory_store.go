package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

var (
	_ port.LedgerStore        = (*InMemoryStore)(nil)
	_ port.AccountProvisioner = (*InMemoryStore)(nil)
	_ port.TransactionHistory = (*InMemoryStore)(nil)
)

// InMemoryStore implements the LedgerStore port in process. Balance and
// idempotency locks live in a lock table and are held until the unit of work
// ends; writes are staged and applied together on commit.
type InMemoryStore struct {
	mu          sync.RWMutex
	balances    map[entity.BalanceKey]int64
	entries     []entity.Transaction
	idempotency map[string]entity.IdempotencyRecord

	locks       *lockTable
	lockTimeout time.Duration
	logger      logger.Logger
}

// NewInMemoryStore creates an empty store. lockTimeout bounds every lock
// wait; zero waits for as long as the caller's context allows.
func NewInMemoryStore(logger logger.Logger, lockTimeout time.Duration) *InMemoryStore {
	return &InMemoryStore{
		balances:    make(map[entity.BalanceKey]int64),
		entries:     make([]entity.Transaction, 0),
		idempotency: make(map[string]entity.IdempotencyRecord),
		locks:       newLockTable(),
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Provision creates a zero balance for every supported currency the user
// does not hold yet.
func (s *InMemoryStore) Provision(ctx context.Context, userID string) error {
	if userID == "" {
		return entity.ErrMissingUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range entity.SupportedCurrencies {
		key := entity.BalanceKey{UserID: userID, Currency: cur}
		if _, ok := s.balances[key]; !ok {
			s.balances[key] = 0
		}
	}
	s.logger.LogDebug(ctx, "Balances provisioned", "user", userID)
	return nil
}

// Balances returns the committed balances of a user
func (s *InMemoryStore) Balances(_ context.Context, userID string) ([]entity.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Balance
	for key, amount := range s.balances {
		if key.UserID == userID {
			out = append(out, entity.Balance{Key: key, Amount: amount})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: user %s", entity.ErrNotFound, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// Entries returns a copy of the ledger in append order.
func (s *InMemoryStore) Entries() []entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Transaction, len(s.entries))
	copy(out, s.entries)
	return out
}

// History returns up to limit entries touching userID, newest first. A
// non-positive limit returns all of them.
func (s *InMemoryStore) History(_ context.Context, userID string, limit int) ([]entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Transaction, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.FromUserID != userID && e.ToUserID != userID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// WithinUnitOfWork runs fn and commits its staged writes atomically.
func (s *InMemoryStore) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow port.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := &memoryUnitOfWork{
		store:   s,
		held:    make(map[string]bool),
		current: make(map[entity.BalanceKey]int64),
		dirty:   make(map[entity.BalanceKey]bool),
		records: make(map[string]entity.IdempotencyRecord),
	}
	defer uow.releaseAll()

	if err := fn(ctx, uow); err != nil {
		return err
	}
	// Cancellation before commit is an abort.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(uow)
}

func (s *InMemoryStore) commit(uow *memoryUnitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range uow.dirty {
		if uow.current[key] < 0 {
			return fmt.Errorf("%w: %s", entity.ErrNegativeBalance, key)
		}
	}
	for key := range uow.records {
		if _, exists := s.idempotency[key]; exists {
			return fmt.Errorf("%w: %s", entity.ErrIdempotencyKeyExists, key)
		}
	}

	for key := range uow.dirty {
		s.balances[key] = uow.current[key]
	}
	s.entries = append(s.entries, uow.entries...)
	for key, rec := range uow.records {
		s.idempotency[key] = rec
	}
	return nil
}

type memoryUnitOfWork struct {
	store *InMemoryStore

	held  map[string]bool
	order []string

	current map[entity.BalanceKey]int64
	dirty   map[entity.BalanceKey]bool
	entries []entity.Transaction
	records map[string]entity.IdempotencyRecord
}

func balanceLockName(key entity.BalanceKey) string {
	return "balance:" + key.String()
}

func idempotencyLockName(key string) string {
	return "idempotency:" + key
}

func (u *memoryUnitOfWork) lock(ctx context.Context, name string) error {
	if u.held[name] {
		return nil
	}

	lockCtx := ctx
	if u.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, u.store.lockTimeout)
		defer cancel()
	}

	if err := u.store.locks.acquire(lockCtx, name); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", entity.ErrLockTimeout, name)
	}
	u.held[name] = true
	u.order = append(u.order, name)
	return nil
}

func (u *memoryUnitOfWork) releaseAll() {
	for i := len(u.order) - 1; i >= 0; i-- {
		u.store.locks.release(u.order[i])
	}
	u.order = nil
	u.held = map[string]bool{}
}

func (u *memoryUnitOfWork) LockBalance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	if err := u.lock(ctx, balanceLockName(key)); err != nil {
		return nil, err
	}

	if amount, ok := u.current[key]; ok {
		return &entity.Balance{Key: key, Amount: amount}, nil
	}

	u.store.mu.RLock()
	amount, ok := u.store.balances[key]
	u.store.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, key)
	}

	u.current[key] = amount
	return &entity.Balance{Key: key, Amount: amount}, nil
}

func (u *memoryUnitOfWork) AdjustBalance(_ context.Context, balance *entity.Balance, delta int64) error {
	if balance == nil {
		return fmt.Errorf("%w: nil balance", entity.ErrNotFound)
	}
	if _, ok := u.current[balance.Key]; !ok || !u.held[balanceLockName(balance.Key)] {
		return fmt.Errorf("balance %s is not locked by this unit of work", balance.Key)
	}

	u.current[balance.Key] += delta
	u.dirty[balance.Key] = true
	balance.Amount = u.current[balance.Key]
	return nil
}

func (u *memoryUnitOfWork) AppendTransaction(_ context.Context, tx *entity.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", entity.ErrInvalidAmount)
	}
	u.entries = append(u.entries, *tx)
	return nil
}

func (u *memoryUnitOfWork) LockIdempotencyKey(ctx context.Context, key string) error {
	if key == "" {
		return entity.ErrMissingIdempotencyKey
	}
	return u.lock(ctx, idempotencyLockName(key))
}

func (u *memoryUnitOfWork) FindIdempotencyRecord(_ context.Context, key string) (*entity.IdempotencyRecord, error) {
	if rec, ok := u.records[key]; ok {
		return &rec, nil
	}

	u.store.mu.RLock()
	rec, ok := u.store.idempotency[key]
	u.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (u *memoryUnitOfWork) SaveIdempotencyRecord(ctx context.Context, record *entity.IdempotencyRecord) error {
	existing, err := u.FindIdempotencyRecord(ctx, record.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", entity.ErrIdempotencyKeyExists, record.Key)
	}
	u.records[record.Key] = *record
	return nil
}
