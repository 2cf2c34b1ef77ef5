package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/config"
	"walletcore.com/internal/infrastructure/logger"
	"walletcore.com/internal/infrastructure/repository"
)

const serverDir = "server"

// cardRegistrar is a card registry the demo seed can write to.
type cardRegistrar interface {
	port.CardRegistry
	Register(ctx context.Context, card entity.Card) error
}

type ledgerBackend interface {
	port.LedgerStore
	port.TransactionHistory
	port.AccountProvisioner
}

// backend is the storage selected by configuration: Postgres when a DSN is
// set, in-memory otherwise.
type backend struct {
	store ledgerBackend
	cards cardRegistrar
	pool  *pgxpool.Pool
	kind  string
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func loadConfig() (*config.Config, error) {
	// Get config directory (relative to where the binary is run from)
	configDir := filepath.Join("cmd", "config", serverDir)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		configDir = filepath.Join(".", "config", serverDir)
	}
	return config.LoadConfig(configDir)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return repository.OpenPostgres(ctx, repository.PoolOptions{
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
	})
}

func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	if cfg.Database.DSN == "" {
		return &backend{
			store: repository.NewInMemoryStore(log, cfg.Ledger.LockTimeout),
			cards: repository.NewInMemoryCardRegistry(),
			kind:  "memory",
		}, nil
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return &backend{
		store: repository.NewPostgresStore(pool, log, cfg.Ledger.LockTimeout),
		cards: repository.NewPostgresCardRegistry(pool),
		pool:  pool,
		kind:  "postgres",
	}, nil
}
