package entity

import (
	"fmt"
	"strings"
)

// CardStatus is the lifecycle state of a card as owned by the card registry.
type CardStatus string

const (
	CardActive   CardStatus = "active"
	CardFrozen   CardStatus = "frozen"
	CardCanceled CardStatus = "canceled"
)

// ParseCardStatus maps a stored status name to its CardStatus.
func ParseCardStatus(s string) (CardStatus, error) {
	switch st := CardStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case CardActive, CardFrozen, CardCanceled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: card status %q", ErrInvalidEnum, s)
	}
}

func (s CardStatus) MarshalText() ([]byte, error) {
	if _, err := ParseCardStatus(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (s *CardStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseCardStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Card is a read-only view of a card; MaskedPAN looks like 545454******5454.
type Card struct {
	MaskedPAN string     `json:"pan_masked"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"card_type"`
	Status    CardStatus `json:"status"`
	Expiry    string     `json:"expiry"`
}

// IsActive reports whether the card may authorize.
func (c *Card) IsActive() bool {
	return c.Status == CardActive
}
