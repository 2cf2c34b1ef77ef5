package usecase

import (
	"context"
	"strings"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

const defaultHistoryLimit = 100

// GetHistoryUseCase lists a user's ledger entries
type GetHistoryUseCase struct {
	history port.TransactionHistory
}

// NewGetHistoryUseCase creates a new GetHistoryUseCase
func NewGetHistoryUseCase(history port.TransactionHistory) *GetHistoryUseCase {
	return &GetHistoryUseCase{history: history}
}

// Execute returns up to limit entries, newest first. A non-positive limit
// falls back to the default page size.
func (uc *GetHistoryUseCase) Execute(ctx context.Context, user string, limit int) ([]entity.Transaction, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, entity.ErrMissingUser
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return uc.history.History(ctx, user, limit)
}
