package usecase

import (
	"context"
	"errors"
	"testing"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

// mockLedgerStore is a mock implementation of LedgerStore
type mockLedgerStore struct {
	balancesFunc func(ctx context.Context, userID string) ([]entity.Balance, error)
}

func (m *mockLedgerStore) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow port.UnitOfWork) error) error {
	return errors.New("not supported by mock")
}

func (m *mockLedgerStore) Balances(ctx context.Context, userID string) ([]entity.Balance, error) {
	if m.balancesFunc != nil {
		return m.balancesFunc(ctx, userID)
	}
	return nil, entity.ErrNotFound
}

func TestGetWalletUseCase_Execute(t *testing.T) {
	tests := []struct {
		name         string
		user         string
		storeRes     []entity.Balance
		storeErr     error
		wantErr      error
		wantBalances []entity.WalletBalance
	}{
		{
			name: "successful wallet retrieval",
			user: "user1",
			storeRes: []entity.Balance{
				{Key: entity.BalanceKey{UserID: "user1", Currency: entity.LBP}, Amount: 150000},
				{Key: entity.BalanceKey{UserID: "user1", Currency: entity.USD}, Amount: 7450},
			},
			wantBalances: []entity.WalletBalance{
				{Currency: entity.LBP, BalanceMinor: 150000, BalanceDecimal: "1500.00"},
				{Currency: entity.USD, BalanceMinor: 7450, BalanceDecimal: "74.50"},
			},
		},
		{
			name: "zero balance keeps its decimals",
			user: "user2",
			storeRes: []entity.Balance{
				{Key: entity.BalanceKey{UserID: "user2", Currency: entity.USD}, Amount: 0},
			},
			wantBalances: []entity.WalletBalance{
				{Currency: entity.USD, BalanceMinor: 0, BalanceDecimal: "0.00"},
			},
		},
		{
			name:     "unknown user",
			user:     "user3",
			storeErr: entity.ErrNotFound,
			wantErr:  entity.ErrNotFound,
		},
		{
			name:    "blank user",
			user:    "  ",
			wantErr: entity.ErrMissingUser,
		},
		{
			name:     "store error",
			user:     "user4",
			storeErr: entity.ErrStoreUnavailable,
			wantErr:  entity.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockLedgerStore{
				balancesFunc: func(ctx context.Context, userID string) ([]entity.Balance, error) {
					return tt.storeRes, tt.storeErr
				},
			}

			useCase := NewGetWalletUseCase(store)
			result, err := useCase.Execute(context.Background(), tt.user)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetWalletUseCase.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if result.User != tt.user {
				t.Errorf("Result.User = %v, want %v", result.User, tt.user)
			}
			if len(result.Balances) != len(tt.wantBalances) {
				t.Fatalf("Result.Balances length = %v, want %v", len(result.Balances), len(tt.wantBalances))
			}
			for i, want := range tt.wantBalances {
				if result.Balances[i] != want {
					t.Errorf("Result.Balances[%d] = %+v, want %+v", i, result.Balances[i], want)
				}
			}
		})
	}
}
