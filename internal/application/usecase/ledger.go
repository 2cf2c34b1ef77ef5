package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/gowebpki/jcs"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

// movement is one balance mutation: a debit of source, a credit of target,
// or both. A nil source means funds enter the ledger; a nil target means
// they leave it.
type movement struct {
	source   *entity.BalanceKey
	target   *entity.BalanceKey
	currency entity.Currency
	amount   int64
	details  entity.TransactionDetails
}

type movementResult struct {
	transaction *entity.Transaction
	source      *entity.Balance
	target      *entity.Balance
}

// lockOrder returns the distinct keys of m in global lock order.
func (m movement) lockOrder() []entity.BalanceKey {
	keys := make([]entity.BalanceKey, 0, 2)
	if m.source != nil {
		keys = append(keys, *m.source)
	}
	if m.target != nil && (m.source == nil || *m.target != *m.source) {
		keys = append(keys, *m.target)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// postMovement is the only code path that mutates balances. It must run
// inside a unit of work: locks are taken in key order, sufficiency is checked
// with every lock held, then balances are adjusted and one ledger entry is
// appended. Any error leaves the unit of work to be aborted.
func postMovement(ctx context.Context, uow port.UnitOfWork, m movement) (*movementResult, error) {
	locked := make(map[entity.BalanceKey]*entity.Balance, 2)
	for _, key := range m.lockOrder() {
		b, err := uow.LockBalance(ctx, key)
		if err != nil {
			return nil, err
		}
		locked[key] = b
	}

	// A self-transfer nets to zero; any other credit must stay within int64.
	if m.target != nil && (m.source == nil || *m.source != *m.target) {
		if dst := locked[*m.target]; dst.Amount > math.MaxInt64-m.amount {
			return nil, fmt.Errorf("%w: credit would overflow %s", entity.ErrInvalidAmount, dst.Key)
		}
	}

	res := &movementResult{}
	var from, to string

	if m.source != nil {
		src := locked[*m.source]
		if src.Amount < m.amount {
			return nil, &entity.InsufficientFundsError{
				Key:       src.Key,
				Available: src.Amount,
				Requested: m.amount,
			}
		}
		if err := uow.AdjustBalance(ctx, src, -m.amount); err != nil {
			return nil, err
		}
		res.source = src
		from = src.Key.UserID
	}

	if m.target != nil {
		dst := locked[*m.target]
		if err := uow.AdjustBalance(ctx, dst, m.amount); err != nil {
			return nil, err
		}
		res.target = dst
		to = dst.Key.UserID
	}

	tx, err := entity.NewTransaction(from, to, m.currency, m.amount, m.details)
	if err != nil {
		return nil, err
	}
	if err := uow.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	res.transaction = tx
	return res, nil
}

// canonicalJSON encodes v as RFC 8785 JSON so equal values give equal bytes.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
