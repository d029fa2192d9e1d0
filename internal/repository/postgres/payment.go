package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

type paymentRepository struct {
	db dbtx
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	var last4, expiry, cardType, bank sql.NullString
	if c := p.Card; c != nil {
		last4 = sql.NullString{String: c.Last4, Valid: true}
		expiry = sql.NullString{String: c.Expiry, Valid: c.Expiry != ""}
		cardType = sql.NullString{String: c.CardType, Valid: c.CardType != ""}
		bank = sql.NullString{String: c.BankName, Valid: c.BankName != ""}
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, customer_id, amount, method, paid_at, card_last4, card_expiry, card_type, bank_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OrderID, p.CustomerID, p.Amount, string(p.Method), p.PaidAt, last4, expiry, cardType, bank,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", translate(err))
	}
	return nil
}

func (r *paymentRepository) FindByOrder(ctx context.Context, orderID int64) ([]entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, customer_id, amount, method, paid_at, card_last4, card_expiry, card_type, bank_name
		FROM payments WHERE order_id = $1 ORDER BY paid_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []entity.Payment
	for rows.Next() {
		var (
			p                             entity.Payment
			method                        string
			last4, expiry, cardType, bank sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.CustomerID, &p.Amount, &method, &p.PaidAt, &last4, &expiry, &cardType, &bank); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Method = entity.PaymentMethod(method)
		if last4.Valid {
			p.Card = &entity.CardDetails{
				Last4:    last4.String,
				Expiry:   expiry.String,
				CardType: cardType.String,
				BankName: bank.String,
			}
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *paymentRepository) SumByOrder(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1", orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return sum, nil
}
