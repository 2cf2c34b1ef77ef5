package http

import (
	"reflect"
	"strings"
	"time"

	playvalidator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"walletcore.com/internal/application/usecase"
	"walletcore.com/internal/domain/entity"
)

// newRequestValidator reports field errors under their JSON names.
func newRequestValidator() *playvalidator.Validate {
	v := playvalidator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type transferRequest struct {
	FromUserID string          `json:"from_user_id" validate:"required"`
	ToUserID   string          `json:"to_user_id" validate:"required"`
	Currency   string          `json:"currency" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	TransactionID  string `json:"tx_id"`
	Currency       string `json:"currency"`
	FromNewBalance int64  `json:"from_new_balance"`
	ToNewBalance   int64  `json:"to_new_balance"`
}

type paymentRequest struct {
	FromUserID  string          `json:"from_user_id" validate:"required"`
	ToUserID    string          `json:"to_user_id,omitempty"`
	Currency    string          `json:"currency" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty" validate:"max=255"`
}

type paymentResponse struct {
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
	Currency          string `json:"currency"`
	NewBalanceMinor   int64  `json:"new_balance_minor"`
	NewBalanceDecimal string `json:"new_balance_decimal"`
}

type topupRequest struct {
	UserID   string          `json:"user_id" validate:"required"`
	Currency string          `json:"currency" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type topupResponse struct {
	TransactionID  string `json:"transaction_id"`
	Currency       string `json:"currency"`
	BalanceMinor   int64  `json:"balance_minor"`
	BalanceDecimal string `json:"balance_decimal"`
}

// historyEntry is one ledger entry as shown to the account holder.
type historyEntry struct {
	ID         string                    `json:"id"`
	FromUserID *string                   `json:"from_user_id"`
	ToUserID   *string                   `json:"to_user_id"`
	Currency   entity.Currency           `json:"currency"`
	Amount     string                    `json:"amount"`
	Type       entity.TransactionKind    `json:"type"`
	Status     entity.TransactionStatus  `json:"status"`
	Details    entity.TransactionDetails `json:"details"`
	CreatedAt  string                    `json:"created_at"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newTransferResponse(res *usecase.TransferResult) transferResponse {
	return transferResponse{
		TransactionID:  res.TransactionID.String(),
		Currency:       string(res.Currency),
		FromNewBalance: res.SourceBalance,
		ToNewBalance:   res.DestinationBalance,
	}
}

func newPaymentResponse(res *usecase.TransferResult) paymentResponse {
	return paymentResponse{
		TransactionID:     res.TransactionID.String(),
		Status:            string(entity.StatusCompleted),
		Currency:          string(res.Currency),
		NewBalanceMinor:   res.SourceBalance,
		NewBalanceDecimal: entity.FormatMinorUnits(res.SourceBalance, res.Currency),
	}
}

func newTopupResponse(res *usecase.TopupResult) topupResponse {
	return topupResponse{
		TransactionID:  res.TransactionID.String(),
		Currency:       string(res.Currency),
		BalanceMinor:   res.NewBalance,
		BalanceDecimal: entity.FormatMinorUnits(res.NewBalance, res.Currency),
	}
}

func newHistory(entries []entity.Transaction) []historyEntry {
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:         e.ID.String(),
			FromUserID: optional(e.FromUserID),
			ToUserID:   optional(e.ToUserID),
			Currency:   e.Currency,
			Amount:     entity.FormatMinorUnits(e.Amount, e.Currency),
			Type:       e.Kind,
			Status:     e.Status,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
