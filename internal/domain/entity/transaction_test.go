package entity

import (
	"errors"
	"testing"
)

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction("alice", "", USD, 1000, CardPaymentDetails{TxnRef: "BANK_TXN_1"})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if tx.Kind != KindCardPayment || tx.Status != StatusCompleted {
		t.Errorf("kind/status = %s/%s", tx.Kind, tx.Status)
	}

	if _, err := NewTransaction("alice", "bob", USD, 0, TransferDetails{}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v", err)
	}
	if _, err := NewTransaction("", "", USD, 10, TopupDetails{}); !errors.Is(err, ErrMissingUser) {
		t.Errorf("no parties error = %v", err)
	}
}

func TestFoldBalance(t *testing.T) {
	entries := []Transaction{
		{ToUserID: "alice", Currency: USD, Amount: 10000, Kind: KindTopup, Status: StatusCompleted},
		{FromUserID: "alice", ToUserID: "bob", Currency: USD, Amount: 2550, Kind: KindPeerTransfer, Status: StatusCompleted},
		{FromUserID: "alice", Currency: USD, Amount: 1000, Kind: KindCardPayment, Status: StatusCompleted},
		{FromUserID: "alice", Currency: USD, Amount: 500, Kind: KindPayment, Status: StatusFailed},
		{ToUserID: "alice", Currency: LBP, Amount: 999, Kind: KindTopup, Status: StatusCompleted},
		{FromUserID: "alice", ToUserID: "alice", Currency: USD, Amount: 300, Kind: KindPeerTransfer, Status: StatusCompleted},
	}

	if got := FoldBalance(entries, BalanceKey{UserID: "alice", Currency: USD}); got != 6450 {
		t.Errorf("alice USD = %d, want 6450", got)
	}
	if got := FoldBalance(entries, BalanceKey{UserID: "bob", Currency: USD}); got != 2550 {
		t.Errorf("bob USD = %d, want 2550", got)
	}
	if got := FoldBalance(entries, BalanceKey{UserID: "alice", Currency: LBP}); got != 999 {
		t.Errorf("alice LBP = %d, want 999", got)
	}
}

func TestDecodeTransactionDetails(t *testing.T) {
	tests := []struct {
		kind TransactionKind
		raw  string
		want TransactionDetails
	}{
		{KindTopup, `{}`, TopupDetails{}},
		{KindPeerTransfer, ``, TransferDetails{}},
		{KindPayment, `{"description":"rent"}`, PaymentDetails{Description: "rent"}},
		{KindCardPayment, `{"txn_ref":"T1","merchant_name":"SHOP"}`, CardPaymentDetails{TxnRef: "T1", MerchantName: "SHOP"}},
	}
	for _, tt := range tests {
		got, err := DecodeTransactionDetails(tt.kind, []byte(tt.raw))
		if err != nil {
			t.Fatalf("DecodeTransactionDetails(%s): %v", tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("DecodeTransactionDetails(%s) = %#v, want %#v", tt.kind, got, tt.want)
		}
	}

	if _, err := DecodeTransactionDetails("refund", nil); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := DecodeTransactionDetails(KindPayment, []byte(`[`)); err == nil {
		t.Error("malformed details decoded without error")
	}
}
