package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

var _ port.CardRegistry = (*PostgresCardRegistry)(nil)

// PostgresCardRegistry reads the cards table owned by the card service.
type PostgresCardRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresCardRegistry creates a card registry backed by the cards table.
func NewPostgresCardRegistry(db *pgxpool.Pool) *PostgresCardRegistry {
	return &PostgresCardRegistry{db: db}
}

// LookupByMaskedPAN returns the card with the given masked PAN or ErrCardNotFound.
func (r *PostgresCardRegistry) LookupByMaskedPAN(ctx context.Context, maskedPAN string) (*entity.Card, error) {
	var card entity.Card
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT pan_masked, user_id, card_type, status, COALESCE(expiry, '')
		   FROM cards
		  WHERE pan_masked = $1`,
		maskedPAN,
	).Scan(&card.MaskedPAN, &card.UserID, &card.Type, &status, &card.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrCardNotFound, maskedPAN)
		}
		return nil, classify(err)
	}

	card.Status, err = entity.ParseCardStatus(status)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Register upserts a card. Only the demo seed uses it; card issuance lives
// in the card service.
func (r *PostgresCardRegistry) Register(ctx context.Context, card entity.Card) error {
	if card.MaskedPAN == "" || card.UserID == "" {
		return fmt.Errorf("%w: card needs pan_masked and user_id", entity.ErrMissingUser)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO cards (user_id, pan_masked, card_type, status, expiry)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (pan_masked) DO UPDATE
		   SET user_id = EXCLUDED.user_id, status = EXCLUDED.status, expiry = EXCLUDED.expiry`,
		card.UserID, card.MaskedPAN, card.Type, string(card.Status), card.Expiry,
	)
	return classify(err)
}
