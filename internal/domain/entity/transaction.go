package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionKind is the kind of monetary event a ledger entry documents.
type TransactionKind string

const (
	KindTopup        TransactionKind = "topup"
	KindPeerTransfer TransactionKind = "p2p"
	KindPayment      TransactionKind = "payment"
	KindCardPayment  TransactionKind = "card_payment"
)

// ParseTransactionKind maps a stored kind name to its TransactionKind.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(s); k {
	case KindTopup, KindPeerTransfer, KindPayment, KindCardPayment:
		return k, nil
	default:
		return "", fmt.Errorf("%w: transaction kind %q", ErrInvalidEnum, s)
	}
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	if _, err := ParseTransactionKind(string(k)); err != nil {
		return nil, err
	}
	return []byte(k), nil
}

func (k *TransactionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TransactionStatus is the outcome recorded on a ledger entry.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// ParseTransactionStatus maps a stored status name to its TransactionStatus.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: transaction status %q", ErrInvalidEnum, s)
	}
}

func (s TransactionStatus) MarshalText() ([]byte, error) {
	if _, err := ParseTransactionStatus(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (s *TransactionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TransactionDetails is the kind-specific payload of a ledger entry.
type TransactionDetails interface {
	Kind() TransactionKind
}

// TopupDetails marks a topup. It carries no extra fields.
type TopupDetails struct{}

func (TopupDetails) Kind() TransactionKind { return KindTopup }

// TransferDetails marks a peer transfer.
type TransferDetails struct{}

func (TransferDetails) Kind() TransactionKind { return KindPeerTransfer }

// PaymentDetails describes a payment to a merchant or user.
type PaymentDetails struct {
	Description string `json:"description"`
}

func (PaymentDetails) Kind() TransactionKind { return KindPayment }

// CardPaymentDetails references the authorization message that caused a debit.
type CardPaymentDetails struct {
	TxnRef                   string `json:"txn_ref,omitempty"`
	RetrievalReferenceNumber string `json:"retrieval_reference_number,omitempty"`
	SystemsTraceAuditNumber  string `json:"systems_trace_audit_number,omitempty"`
	MerchantName             string `json:"merchant_name,omitempty"`
	MerchantCategoryCode     string `json:"merchant_category_code,omitempty"`
}

func (CardPaymentDetails) Kind() TransactionKind { return KindCardPayment }

// Transaction is an immutable ledger entry. An empty FromUserID means funds
// entered the system (topup); an empty ToUserID means they left it.
type Transaction struct {
	ID         uuid.UUID
	FromUserID string
	ToUserID   string
	Currency   Currency
	Amount     int64
	Kind       TransactionKind
	Status     TransactionStatus
	Details    TransactionDetails
	CreatedAt  time.Time
}

// NewTransaction builds a completed ledger entry whose kind follows its details.
func NewTransaction(from, to string, currency Currency, amount int64, details TransactionDetails) (*Transaction, error) {
	if details == nil {
		return nil, fmt.Errorf("%w: transaction details are required", ErrInvalidEnum)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: ledger amount %d", ErrInvalidAmount, amount)
	}
	if from == "" && to == "" {
		return nil, ErrMissingUser
	}
	return &Transaction{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Currency:   currency,
		Amount:     amount,
		Kind:       details.Kind(),
		Status:     StatusCompleted,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// FoldBalance reconstructs the balance of key from ledger entries.
func FoldBalance(entries []Transaction, key BalanceKey) int64 {
	var total int64
	for _, e := range entries {
		if e.Status != StatusCompleted || e.Currency != key.Currency {
			continue
		}
		if e.ToUserID == key.UserID {
			total += e.Amount
		}
		if e.FromUserID == key.UserID {
			total -= e.Amount
		}
	}
	return total
}

// DecodeTransactionDetails rebuilds the details variant of kind from its
// stored JSON form.
func DecodeTransactionDetails(kind TransactionKind, raw []byte) (TransactionDetails, error) {
	var details TransactionDetails
	switch kind {
	case KindTopup:
		details = &TopupDetails{}
	case KindPeerTransfer:
		details = &TransferDetails{}
	case KindPayment:
		details = &PaymentDetails{}
	case KindCardPayment:
		details = &CardPaymentDetails{}
	default:
		return nil, fmt.Errorf("%w: transaction kind %q", ErrInvalidEnum, kind)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, details); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", kind, err)
		}
	}
	// Return the value form so stored and freshly built entries compare equal.
	switch d := details.(type) {
	case *TopupDetails:
		return *d, nil
	case *TransferDetails:
		return *d, nil
	case *PaymentDetails:
		return *d, nil
	case *CardPaymentDetails:
		return *d, nil
	}
	return details, nil
}
