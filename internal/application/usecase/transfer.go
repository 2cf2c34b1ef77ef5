package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

// FundsTransferUseCase handles topups, peer transfers and payments
type FundsTransferUseCase struct {
	store   port.LedgerStore
	metrics port.MetricsRecorder
	logger  logger.Logger
}

// NewFundsTransferUseCase creates a new FundsTransferUseCase
func NewFundsTransferUseCase(store port.LedgerStore, metrics port.MetricsRecorder, logger logger.Logger) *FundsTransferUseCase {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &FundsTransferUseCase{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// TransferRequest moves Amount of Currency from one user to another.
type TransferRequest struct {
	FromUserID string
	ToUserID   string
	Currency   string
	Amount     decimal.Decimal
}

// PaymentRequest is a transfer that carries a description. An empty
// ToUserID pays out of the ledger: the source is debited and nobody is
// credited.
type PaymentRequest struct {
	FromUserID  string
	ToUserID    string
	Currency    string
	Amount      decimal.Decimal
	Description string
}

// TopupRequest credits a user with funds from outside the ledger.
type TopupRequest struct {
	UserID   string
	Currency string
	Amount   decimal.Decimal
}

// TransferResult carries the post-commit balances of both sides.
// DestinationBalance is zero and HasDestination false for a payment out of
// the ledger.
type TransferResult struct {
	TransactionID      uuid.UUID
	Currency           entity.Currency
	Amount             int64
	SourceBalance      int64
	DestinationBalance int64
	HasDestination     bool
}

// TopupResult carries the credited amount and the new balance.
type TopupResult struct {
	TransactionID uuid.UUID
	Currency      entity.Currency
	Amount        int64
	NewBalance    int64
}

// Transfer executes a peer-to-peer transfer.
func (uc *FundsTransferUseCase) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if strings.TrimSpace(req.ToUserID) == "" {
		return nil, entity.ErrMissingUser
	}
	return uc.move(ctx, req.FromUserID, req.ToUserID, req.Currency, req.Amount, entity.TransferDetails{})
}

// Payment executes a transfer recorded as a payment.
func (uc *FundsTransferUseCase) Payment(ctx context.Context, req PaymentRequest) (*TransferResult, error) {
	details := entity.PaymentDetails{Description: strings.TrimSpace(req.Description)}
	return uc.move(ctx, req.FromUserID, req.ToUserID, req.Currency, req.Amount, details)
}

// Topup credits a user's balance.
func (uc *FundsTransferUseCase) Topup(ctx context.Context, req TopupRequest) (*TopupResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, entity.ErrMissingUser
	}
	currency, amount, err := parseMoney(req.Currency, req.Amount)
	if err != nil {
		return nil, err
	}

	key := entity.BalanceKey{UserID: userID, Currency: currency}
	res, err := uc.post(ctx, movement{
		target:   &key,
		currency: currency,
		amount:   amount,
		details:  entity.TopupDetails{},
	})
	if err != nil {
		return nil, err
	}
	return &TopupResult{
		TransactionID: res.transaction.ID,
		Currency:      currency,
		Amount:        amount,
		NewBalance:    res.target.Amount,
	}, nil
}

func (uc *FundsTransferUseCase) move(ctx context.Context, from, to, cur string, amt decimal.Decimal, details entity.TransactionDetails) (*TransferResult, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, entity.ErrMissingUser
	}
	currency, amount, err := parseMoney(cur, amt)
	if err != nil {
		return nil, err
	}

	source := entity.BalanceKey{UserID: from, Currency: currency}
	m := movement{
		source:   &source,
		currency: currency,
		amount:   amount,
		details:  details,
	}
	if to != "" {
		m.target = &entity.BalanceKey{UserID: to, Currency: currency}
	}

	res, err := uc.post(ctx, m)
	if err != nil {
		return nil, err
	}
	out := &TransferResult{
		TransactionID: res.transaction.ID,
		Currency:      currency,
		Amount:        amount,
		SourceBalance: res.source.Amount,
	}
	if res.target != nil {
		out.DestinationBalance = res.target.Amount
		out.HasDestination = true
	}
	return out, nil
}

// post runs one movement in its own unit of work and records the outcome.
func (uc *FundsTransferUseCase) post(ctx context.Context, m movement) (*movementResult, error) {
	kind := string(m.details.Kind())
	log := uc.logger.With("kind", kind, "currency", string(m.currency), "amount_minor", m.amount)

	var res *movementResult
	err := uc.store.WithinUnitOfWork(ctx, func(ctx context.Context, uow port.UnitOfWork) error {
		var err error
		res, err = postMovement(ctx, uow, m)
		return err
	})
	uc.metrics.ObserveMovement(kind, movementOutcome(err))
	if err != nil {
		if entity.IsRetryable(err) {
			log.LogError(ctx, "Movement aborted", err)
		} else {
			log.LogInfo(ctx, "Movement rejected", "reason", err.Error())
		}
		return nil, err
	}

	log.LogInfo(ctx, "Movement committed", "transaction_id", res.transaction.ID.String())
	return res, nil
}

func parseMoney(cur string, amt decimal.Decimal) (entity.Currency, int64, error) {
	currency, err := entity.ParseCurrency(cur)
	if err != nil {
		return "", 0, err
	}
	amount, err := entity.ToMinorUnits(amt, currency)
	if err != nil {
		return "", 0, err
	}
	return currency, amount, nil
}

func movementOutcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, entity.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case entity.IsRetryable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}
