package entity

import "fmt"

// BalanceKey identifies one lockable balance row.
type BalanceKey struct {
	UserID   string
	Currency Currency
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.Currency)
}

// Less is the global lock order: user id first, then currency code.
func (k BalanceKey) Less(other BalanceKey) bool {
	if k.UserID != other.UserID {
		return k.UserID < other.UserID
	}
	return k.Currency < other.Currency
}

// Balance is the amount held for a key, in minor units.
type Balance struct {
	Key    BalanceKey
	Amount int64
}

// WalletBalance is one currency line of a wallet read.
type WalletBalance struct {
	Currency       Currency `json:"currency"`
	BalanceMinor   int64    `json:"balance_minor"`
	BalanceDecimal string   `json:"balance_decimal"`
}

// WalletResponse represents the balances held by a user
type WalletResponse struct {
	User     string          `json:"user"`
	Balances []WalletBalance `json:"balances"`
}
