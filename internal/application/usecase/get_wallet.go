package usecase

import (
	"context"
	"strings"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

// GetWalletUseCase handles wallet balance retrieval
type GetWalletUseCase struct {
	store port.LedgerStore
}

// NewGetWalletUseCase creates a new GetWalletUseCase
func NewGetWalletUseCase(store port.LedgerStore) *GetWalletUseCase {
	return &GetWalletUseCase{
		store: store,
	}
}

// Execute retrieves every balance held by a user, in minor units and as a
// fixed-point decimal.
func (uc *GetWalletUseCase) Execute(ctx context.Context, user string) (*entity.WalletResponse, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, entity.ErrMissingUser
	}

	balances, err := uc.store.Balances(ctx, user)
	if err != nil {
		return nil, err
	}

	resp := &entity.WalletResponse{
		User:     user,
		Balances: make([]entity.WalletBalance, 0, len(balances)),
	}
	for _, b := range balances {
		resp.Balances = append(resp.Balances, entity.WalletBalance{
			Currency:       b.Key.Currency,
			BalanceMinor:   b.Amount,
			BalanceDecimal: entity.FormatMinorUnits(b.Amount, b.Key.Currency),
		})
	}
	return resp, nil
}
