package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

var (
	_ port.LedgerStore        = (*PostgresStore)(nil)
	_ port.AccountProvisioner = (*PostgresStore)(nil)
	_ port.TransactionHistory = (*PostgresStore)(nil)
)

// PostgresStore implements the LedgerStore port on PostgreSQL. Balance holds
// are row locks (SELECT ... FOR UPDATE); idempotency keys are serialized with
// transaction-scoped advisory locks.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
	logger      logger.Logger
}

const maxHistory = 1000

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, logger logger.Logger, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout, logger: logger}
}

// classify maps driver errors onto the ledger error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03": // lock_not_available
			return fmt.Errorf("%w: %s", entity.ErrLockTimeout, pgErr.Message)
		case "23514": // check_violation
			if pgErr.ConstraintName == "balances_amount_non_negative" {
				return fmt.Errorf("%w: %s", entity.ErrNegativeBalance, pgErr.Message)
			}
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("%w: %s", entity.ErrInvalidAmount, pgErr.Message)
		case "23505": // unique_violation
			if pgErr.ConstraintName == "idempotency_records_pkey" {
				return fmt.Errorf("%w: %s", entity.ErrIdempotencyKeyExists, pgErr.Message)
			}
		}
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}

// WithinUnitOfWork runs fn in a transaction and commits when fn returns nil.
func (s *PostgresStore) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow port.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return classify(err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			return classify(err)
		}
	}

	uow := &pgUnitOfWork{tx: tx, locked: make(map[entity.BalanceKey]bool)}
	if err := fn(ctx, uow); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Balances returns the user's balances ordered by currency.
func (s *PostgresStore) Balances(ctx context.Context, userID string) ([]entity.Balance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT currency, amount FROM balances WHERE user_id = $1 ORDER BY currency`,
		userID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []entity.Balance
	for rows.Next() {
		var cur string
		var amount int64
		if err := rows.Scan(&cur, &amount); err != nil {
			return nil, classify(err)
		}
		currency, err := entity.ParseCurrency(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.Balance{
			Key:    entity.BalanceKey{UserID: userID, Currency: currency},
			Amount: amount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: user %s", entity.ErrNotFound, userID)
	}
	return out, nil
}

// History returns the user's most recent transactions, newest first.
func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]entity.Transaction, error) {
	if limit <= 0 {
		limit = maxHistory
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(from_user_id, ''), COALESCE(to_user_id, ''), currency, amount,
		        kind, status, details::text, created_at
		   FROM transactions
		  WHERE from_user_id = $1 OR to_user_id = $1
		  ORDER BY created_at DESC, id
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]entity.Transaction, 0)
	for rows.Next() {
		var tx entity.Transaction
		var currency, kind, status, details string
		if err := rows.Scan(&tx.ID, &tx.FromUserID, &tx.ToUserID, &currency, &tx.Amount,
			&kind, &status, &details, &tx.CreatedAt); err != nil {
			return nil, classify(err)
		}
		if tx.Currency, err = entity.ParseCurrency(currency); err != nil {
			return nil, err
		}
		if tx.Kind, err = entity.ParseTransactionKind(kind); err != nil {
			return nil, err
		}
		if tx.Status, err = entity.ParseTransactionStatus(status); err != nil {
			return nil, err
		}
		if tx.Details, err = entity.DecodeTransactionDetails(tx.Kind, []byte(details)); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Provision creates zero balances for every currency. It is idempotent.
func (s *PostgresStore) Provision(ctx context.Context, userID string) error {
	if userID == "" {
		return entity.ErrMissingUser
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	for _, cur := range entity.SupportedCurrencies {
		_, err := tx.Exec(ctx,
			`INSERT INTO balances (user_id, currency, amount)
			 VALUES ($1, $2, 0)
			 ON CONFLICT (user_id, currency) DO NOTHING`,
			userID, string(cur),
		)
		if err != nil {
			return classify(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	s.logger.LogDebug(ctx, "Balances provisioned", "user", userID)
	return nil
}

type pgUnitOfWork struct {
	tx     pgx.Tx
	locked map[entity.BalanceKey]bool
}

func (u *pgUnitOfWork) LockBalance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	var amount int64
	err := u.tx.QueryRow(ctx,
		`SELECT amount FROM balances WHERE user_id = $1 AND currency = $2 FOR UPDATE`,
		key.UserID, string(key.Currency),
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, key)
		}
		return nil, classify(err)
	}
	u.locked[key] = true
	return &entity.Balance{Key: key, Amount: amount}, nil
}

func (u *pgUnitOfWork) AdjustBalance(ctx context.Context, balance *entity.Balance, delta int64) error {
	if balance == nil {
		return fmt.Errorf("%w: nil balance", entity.ErrNotFound)
	}
	if !u.locked[balance.Key] {
		return fmt.Errorf("balance %s is not locked by this unit of work", balance.Key)
	}

	var amount int64
	err := u.tx.QueryRow(ctx,
		`UPDATE balances SET amount = amount + $3, updated_at = now()
		  WHERE user_id = $1 AND currency = $2
		  RETURNING amount`,
		balance.Key.UserID, string(balance.Key.Currency), delta,
	).Scan(&amount)
	if err != nil {
		return classify(err)
	}
	balance.Amount = amount
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (u *pgUnitOfWork) AppendTransaction(ctx context.Context, tx *entity.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", entity.ErrInvalidAmount)
	}
	details, err := json.Marshal(tx.Details)
	if err != nil {
		return fmt.Errorf("encode %s details: %w", tx.Kind, err)
	}

	_, err = u.tx.Exec(ctx,
		`INSERT INTO transactions (
			id, from_user_id, to_user_id, currency, amount, kind, status, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
		tx.ID, nullIfEmpty(tx.FromUserID), nullIfEmpty(tx.ToUserID), string(tx.Currency),
		tx.Amount, string(tx.Kind), string(tx.Status), string(details), tx.CreatedAt,
	)
	return classify(err)
}

func (u *pgUnitOfWork) LockIdempotencyKey(ctx context.Context, key string) error {
	if key == "" {
		return entity.ErrMissingIdempotencyKey
	}
	_, err := u.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return classify(err)
}

func (u *pgUnitOfWork) FindIdempotencyRecord(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	var request, response string
	var processedAt time.Time
	err := u.tx.QueryRow(ctx,
		`SELECT request_payload, response_payload, processed_at
		   FROM idempotency_records
		  WHERE idempotency_key = $1`,
		key,
	).Scan(&request, &response, &processedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &entity.IdempotencyRecord{
		Key:             key,
		RequestPayload:  []byte(request),
		ResponsePayload: []byte(response),
		CreatedAt:       processedAt,
	}, nil
}

func (u *pgUnitOfWork) SaveIdempotencyRecord(ctx context.Context, record *entity.IdempotencyRecord) error {
	tag, err := u.tx.Exec(ctx,
		`INSERT INTO idempotency_records (idempotency_key, request_payload, response_payload, processed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		record.Key, string(record.RequestPayload), string(record.ResponsePayload), record.CreatedAt,
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entity.ErrIdempotencyKeyExists, record.Key)
	}
	return nil
}
