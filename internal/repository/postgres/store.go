package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/reisinl/veg-shop/internal/repository"
)

type store struct {
	db *sql.DB
}

// NewStore creates a Store backed by Postgres.
func NewStore(db *sql.DB) repository.Store {
	return &store{db: db}
}

func bind(q dbtx) repository.Repositories {
	return repository.Repositories{
		Persons:  &personRepository{db: q},
		Items:    &itemRepository{db: q},
		Orders:   &orderRepository{db: q},
		Payments: &paymentRepository{db: q},
		Reports:  &reportRepository{db: q},
		Events:   &eventStore{db: q},
	}
}

func (s *store) Repos() repository.Repositories {
	return bind(s.db)
}

// WithinTx runs fn in one transaction. Row locks taken through the bound
// repositories are held until commit or rollback.
func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, bind(tx)); err != nil {
		slog.Debug("Transaction rolled back", "err", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	return s.db.Close()
}
