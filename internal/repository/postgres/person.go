package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

type personRepository struct {
	db dbtx
}

const personColumns = `id, kind, username, first_name, last_name, password_hash,
	staff_code, department, date_joined,
	address, customer_code, balance, owing, distance_from_store,
	credit_ceiling, discount_rate, max_credit`

const customerKinds = "kind IN ('customer', 'corporate')"

func (r *personRepository) Create(ctx context.Context, p *entity.Person) error {
	var (
		staffCode, department, address, customerCode sql.NullString
		dateJoined                                   sql.NullTime
		balance, owing                               decimal.Decimal
		distance                                     float64
		ceiling, discount, maxCredit                 decimal.NullDecimal
	)
	if s := p.Staff; s != nil {
		staffCode = sql.NullString{String: s.StaffCode, Valid: true}
		department = sql.NullString{String: s.Department, Valid: true}
		dateJoined = sql.NullTime{Time: s.DateJoined, Valid: !s.DateJoined.IsZero()}
	}
	if c := p.Customer; c != nil {
		address = sql.NullString{String: c.Address, Valid: true}
		customerCode = sql.NullString{String: c.CustomerCode, Valid: c.CustomerCode != ""}
		balance, owing, distance = c.Balance, c.Owing, c.DistanceFromStore
		if corp := c.Corporate; corp != nil {
			ceiling = decimal.NewNullDecimal(corp.CreditCeiling)
			discount = decimal.NewNullDecimal(corp.DiscountRate)
			maxCredit = decimal.NewNullDecimal(corp.MaxCredit)
		}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO persons (kind, username, first_name, last_name, password_hash,
			staff_code, department, date_joined,
			address, customer_code, balance, owing, distance_from_store,
			credit_ceiling, discount_rate, max_credit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		string(p.Kind), p.Username, p.FirstName, p.LastName, p.PasswordHash,
		staffCode, department, dateJoined,
		address, customerCode, balance, owing, distance,
		ceiling, discount, maxCredit,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert person %s: %w", p.Username, translate(err))
	}
	if p.Customer != nil {
		p.Customer.ID = p.ID
		p.Customer.Username = p.Username
		p.Customer.FirstName = p.FirstName
		p.Customer.LastName = p.LastName
	}
	return nil
}

func (r *personRepository) FindByID(ctx context.Context, id int64) (*entity.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE id = $1", id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *personRepository) FindByUsername(ctx context.Context, username string) (*entity.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE username = $1", username))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *personRepository) FindCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	return r.customer(ctx, "SELECT "+personColumns+" FROM persons WHERE id = $1 AND "+customerKinds, id)
}

func (r *personRepository) LockCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	return r.customer(ctx, "SELECT "+personColumns+" FROM persons WHERE id = $1 AND "+customerKinds+" FOR UPDATE", id)
}

func (r *personRepository) customer(ctx context.Context, query string, id int64) (*entity.Customer, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return p.Customer, nil
}

func (r *personRepository) ListCustomers(ctx context.Context) ([]entity.Customer, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+personColumns+" FROM persons WHERE "+customerKinds+" ORDER BY last_name, first_name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []entity.Customer
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *p.Customer)
	}
	return customers, rows.Err()
}

func (r *personRepository) UpdateCustomerAccount(ctx context.Context, id int64, balance, owing decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE persons SET balance = $1, owing = $2 WHERE id = $3 AND "+customerKinds,
		balance, owing, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer account: %w", err)
	}
	return expectOne(res)
}

func (r *personRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return n, nil
}

func scanPerson(row rowScanner) (*entity.Person, error) {
	var (
		p                                            entity.Person
		kind                                         string
		staffCode, department, address, customerCode sql.NullString
		dateJoined                                   sql.NullTime
		balance, owing                               decimal.Decimal
		distance                                     float64
		ceiling, discount, maxCredit                 decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &kind, &p.Username, &p.FirstName, &p.LastName, &p.PasswordHash,
		&staffCode, &department, &dateJoined,
		&address, &customerCode, &balance, &owing, &distance,
		&ceiling, &discount, &maxCredit)
	if err != nil {
		return nil, err
	}
	p.Kind = entity.PersonKind(kind)

	if p.Kind == entity.PersonStaff {
		p.Staff = &entity.StaffInfo{
			StaffCode:  staffCode.String,
			Department: department.String,
			DateJoined: dateJoined.Time,
		}
		return &p, nil
	}

	c := &entity.Customer{
		ID:                p.ID,
		Username:          p.Username,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Address:           address.String,
		CustomerCode:      customerCode.String,
		Balance:           balance,
		Owing:             owing,
		DistanceFromStore: distance,
	}
	if p.Kind == entity.PersonCorporate {
		c.Corporate = &entity.CorporateInfo{
			CreditCeiling: ceiling.Decimal,
			DiscountRate:  discount.Decimal,
			MaxCredit:     maxCredit.Decimal,
		}
	}
	p.Customer = c
	return &p, nil
}
