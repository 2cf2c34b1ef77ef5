package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"walletcore.com/internal/application/usecase"
	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/infrastructure/logger"
)

// Demo fixture: two users with provisioned balances, 200.00 USD for the
// first one and an active card in their name.
const (
	demoPayer      = "kamel"
	demoPayee      = "ali"
	demoCardPAN    = "545454******5454"
	demoTopupUSD   = "200.00"
	demoCardExpiry = "12/26"
)

// seedDemo is safe to run on every boot: the topup only happens while the
// payer's USD balance is still zero.
func seedDemo(ctx context.Context, b *backend, funds *usecase.FundsTransferUseCase, log logger.Logger) error {
	for _, user := range []string{demoPayer, demoPayee} {
		if err := b.store.Provision(ctx, user); err != nil {
			return fmt.Errorf("provision %s: %w", user, err)
		}
	}

	balances, err := b.store.Balances(ctx, demoPayer)
	if err != nil {
		return fmt.Errorf("read %s balances: %w", demoPayer, err)
	}
	funded := false
	for _, bal := range balances {
		if bal.Key.Currency == entity.USD && bal.Amount > 0 {
			funded = true
		}
	}
	if !funded {
		if _, err := funds.Topup(ctx, usecase.TopupRequest{
			UserID:   demoPayer,
			Currency: string(entity.USD),
			Amount:   decimal.RequireFromString(demoTopupUSD),
		}); err != nil {
			return fmt.Errorf("topup %s: %w", demoPayer, err)
		}
	}

	if _, err := b.cards.LookupByMaskedPAN(ctx, demoCardPAN); errors.Is(err, entity.ErrCardNotFound) {
		if err := b.cards.Register(ctx, entity.Card{
			MaskedPAN: demoCardPAN,
			UserID:    demoPayer,
			Type:      "physical",
			Status:    entity.CardActive,
			Expiry:    demoCardExpiry,
		}); err != nil {
			return fmt.Errorf("register card: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("look up card: %w", err)
	}

	log.LogInfo(ctx, "Demo data seeded",
		"users", []string{demoPayer, demoPayee},
		"card", demoCardPAN,
		"topped_up", !funded)
	return nil
}

var seedCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "seed",
	Short: "Load the demo users, balances and card into the database.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appLogger := logger.NewLogger(cfg.Log.Level)
		if cfg.Database.DSN == "" {
			return errors.New("seed needs database.dsn; the in-memory store seeds itself when demo.seed is set")
		}

		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg, appLogger)
		if err != nil {
			return err
		}
		defer b.Close()

		funds := usecase.NewFundsTransferUseCase(b.store, nil, appLogger)
		return seedDemo(ctx, b, funds, appLogger)
	},
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(seedCmd)
}
