package repository

import (
	"context"
	"fmt"
	"sync"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

var _ port.CardRegistry = (*InMemoryCardRegistry)(nil)

// InMemoryCardRegistry stands in for the external card registry.
type InMemoryCardRegistry struct {
	mu    sync.RWMutex
	cards map[string]entity.Card
}

// NewInMemoryCardRegistry creates an empty in-memory card registry.
func NewInMemoryCardRegistry() *InMemoryCardRegistry {
	return &InMemoryCardRegistry{cards: make(map[string]entity.Card)}
}

// Register adds or replaces a card.
func (r *InMemoryCardRegistry) Register(_ context.Context, card entity.Card) error {
	if card.MaskedPAN == "" || card.UserID == "" {
		return fmt.Errorf("%w: card needs pan_masked and user_id", entity.ErrMissingUser)
	}
	if _, err := entity.ParseCardStatus(string(card.Status)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.MaskedPAN] = card
	return nil
}

// LookupByMaskedPAN returns a copy of the card or ErrCardNotFound.
func (r *InMemoryCardRegistry) LookupByMaskedPAN(_ context.Context, maskedPAN string) (*entity.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[maskedPAN]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrCardNotFound, maskedPAN)
	}
	return &card, nil
}
