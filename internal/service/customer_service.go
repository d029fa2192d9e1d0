package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

// CustomerService serves the staff customer list and the customer's own
// account page.
type CustomerService struct {
	store repository.Store
}

func NewCustomerService(store repository.Store) *CustomerService {
	return &CustomerService{store: store}
}

// CustomerView adds the Corporate/Private label to a customer.
type CustomerView struct {
	entity.Customer
	Type string `json:"type"`
}

func (s *CustomerService) List(ctx context.Context, actor Actor) ([]CustomerView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	customers, err := s.store.Repos().Persons.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	out := make([]CustomerView, 0, len(customers))
	for _, c := range customers {
		out = append(out, CustomerView{Customer: c, Type: c.Type()})
	}
	return out, nil
}

// Details returns the acting customer's own account.
func (s *CustomerService) Details(ctx context.Context, actor Actor) (*CustomerView, error) {
	if actor.IsStaff() {
		return nil, entity.ErrForbidden
	}
	c, err := s.store.Repos().Persons.FindCustomer(ctx, actor.PersonID)
	if err != nil {
		return nil, fmt.Errorf("customer %d: %w", actor.PersonID, err)
	}
	return &CustomerView{Customer: *c, Type: c.Type()}, nil
}

var exportHeader = []string{"Customer ID", "First Name", "Last Name", "Address", "Balance"}

// ExportCSV writes every customer as one CSV row.
func (s *CustomerService) ExportCSV(ctx context.Context, actor Actor, w io.Writer) error {
	customers, err := s.List(ctx, actor)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, c := range customers {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.FirstName,
			c.LastName,
			c.Address,
			c.Balance.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
