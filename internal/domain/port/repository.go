package port

import (
	"context"

	"walletcore.com/internal/domain/entity"
)

// UnitOfWork is one atomic, isolated store transaction. Every lock it takes is
// held until the enclosing LedgerStore.WithinUnitOfWork call commits or aborts.
type UnitOfWork interface {
	// LockBalance takes an exclusive hold on one (user, currency) balance and
	// returns its current amount. entity.ErrNotFound when the row is absent.
	LockBalance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
	// AdjustBalance applies a signed delta to a balance locked by this unit of
	// work. Sufficiency is the caller's responsibility.
	AdjustBalance(ctx context.Context, balance *entity.Balance, delta int64) error
	// AppendTransaction records one immutable ledger entry.
	AppendTransaction(ctx context.Context, tx *entity.Transaction) error

	// LockIdempotencyKey serializes units of work sharing an idempotency key.
	LockIdempotencyKey(ctx context.Context, key string) error
	// FindIdempotencyRecord returns nil, nil when the key has no record.
	FindIdempotencyRecord(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
	// SaveIdempotencyRecord fails with entity.ErrIdempotencyKeyExists on a duplicate key.
	SaveIdempotencyRecord(ctx context.Context, record *entity.IdempotencyRecord) error
}

// LedgerStore owns balances, ledger entries and idempotency records.
type LedgerStore interface {
	// WithinUnitOfWork runs fn in a unit of work. A nil return commits; any
	// error, panic or context cancellation before commit aborts.
	WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	// Balances returns every balance held by user, ordered by currency.
	Balances(ctx context.Context, userID string) ([]entity.Balance, error)
}

// TransactionHistory lists the ledger entries a user took part in, newest
// first.
type TransactionHistory interface {
	History(ctx context.Context, userID string, limit int) ([]entity.Transaction, error)
}

// AccountProvisioner creates the zero balances a user needs before the core
// can move money for them.
type AccountProvisioner interface {
	Provision(ctx context.Context, userID string) error
}

// CardRegistry resolves cards; the core never mutates them.
type CardRegistry interface {
	// LookupByMaskedPAN returns entity.ErrCardNotFound for unknown cards.
	LookupByMaskedPAN(ctx context.Context, maskedPAN string) (*entity.Card, error)
}

// ResponseCache holds committed authorization responses for fast replays.
type ResponseCache interface {
	Get(ctx context.Context, idempotencyKey string) ([]byte, bool, error)
	Set(ctx context.Context, idempotencyKey string, response []byte) error
}
