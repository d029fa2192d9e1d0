package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

func copyPerson(p entity.Person) entity.Person {
	if p.Staff != nil {
		s := *p.Staff
		p.Staff = &s
	}
	if p.Customer != nil {
		c := copyCustomer(*p.Customer)
		p.Customer = &c
	}
	return p
}

func copyCustomer(c entity.Customer) entity.Customer {
	if c.Corporate != nil {
		corp := *c.Corporate
		c.Corporate = &corp
	}
	return c
}

func copyItem(it entity.Item) entity.Item {
	if it.Variant != nil {
		v := *it.Variant
		it.Variant = &v
	}
	if it.Box != nil {
		b := *it.Box
		it.Box = &b
	}
	return it
}

func copyOrder(o entity.Order) entity.Order {
	if o.StaffID != nil {
		id := *o.StaffID
		o.StaffID = &id
	}
	o.Lines = append([]entity.OrderLine(nil), o.Lines...)
	return o
}

type personRepository struct {
	v view
}

func (r *personRepository) Create(ctx context.Context, p *entity.Person) error {
	return r.v.with(func(st *state) error {
		for _, existing := range st.persons {
			if existing.Username == p.Username {
				return fmt.Errorf("person %s: %w", p.Username, entity.ErrDuplicate)
			}
		}
		st.nextPersonID++
		p.ID = st.nextPersonID
		if c := p.Customer; c != nil {
			c.ID, c.Username, c.FirstName, c.LastName = p.ID, p.Username, p.FirstName, p.LastName
		}
		st.persons[p.ID] = copyPerson(*p)
		return nil
	})
}

func (r *personRepository) FindByID(ctx context.Context, id int64) (*entity.Person, error) {
	var out entity.Person
	err := r.v.with(func(st *state) error {
		p, ok := st.persons[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = copyPerson(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *personRepository) FindByUsername(ctx context.Context, username string) (*entity.Person, error) {
	var out entity.Person
	err := r.v.with(func(st *state) error {
		for _, p := range st.persons {
			if p.Username == username {
				out = copyPerson(p)
				return nil
			}
		}
		return entity.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *personRepository) FindCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	var out entity.Customer
	err := r.v.with(func(st *state) error {
		p, ok := st.persons[id]
		if !ok || p.Customer == nil {
			return entity.ErrNotFound
		}
		out = copyCustomer(*p.Customer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockCustomer needs no row lock here: transactions are already serialised.
func (r *personRepository) LockCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	return r.FindCustomer(ctx, id)
}

func (r *personRepository) ListCustomers(ctx context.Context) ([]entity.Customer, error) {
	var out []entity.Customer
	err := r.v.with(func(st *state) error {
		for _, p := range st.persons {
			if p.Customer != nil {
				out = append(out, copyCustomer(*p.Customer))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *personRepository) UpdateCustomerAccount(ctx context.Context, id int64, balance, owing decimal.Decimal) error {
	return r.v.with(func(st *state) error {
		p, ok := st.persons[id]
		if !ok || p.Customer == nil {
			return entity.ErrNotFound
		}
		p = copyPerson(p)
		p.Customer.Balance = balance
		p.Customer.Owing = owing
		st.persons[id] = p
		return nil
	})
}

func (r *personRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.v.with(func(st *state) error {
		n = len(st.persons)
		return nil
	})
	return n, err
}

type itemRepository struct {
	v view
}

func (r *itemRepository) Create(ctx context.Context, it *entity.Item) error {
	return r.v.with(func(st *state) error {
		st.nextItemID++
		it.ID = st.nextItemID
		st.items[it.ID] = copyItem(*it)
		return nil
	})
}

func (r *itemRepository) FindAll(ctx context.Context) ([]entity.Item, error) {
	var out []entity.Item
	err := r.v.with(func(st *state) error {
		for _, it := range st.items {
			out = append(out, copyItem(it))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *itemRepository) FindByID(ctx context.Context, id int64) (*entity.Item, error) {
	var out entity.Item
	err := r.v.with(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = copyItem(it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *itemRepository) LockByIDs(ctx context.Context, ids []int64) ([]entity.Item, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []entity.Item
	err := r.v.with(func(st *state) error {
		for _, id := range sorted {
			if it, ok := st.items[id]; ok {
				out = append(out, copyItem(it))
			}
		}
		return nil
	})
	return out, err
}

func (r *itemRepository) FindBoxBySize(ctx context.Context, size entity.BoxSize) (*entity.Item, error) {
	var (
		out   entity.Item
		found bool
	)
	err := r.v.with(func(st *state) error {
		for _, it := range st.items {
			if it.Kind != entity.ItemBox || it.Box == nil || it.Box.Size != size {
				continue
			}
			if !found || it.ID < out.ID {
				out, found = copyItem(it), true
			}
		}
		if !found {
			return entity.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *itemRepository) DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	return r.v.with(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.Stock.LessThan(qty) {
			return fmt.Errorf("item %d: %w", id, entity.ErrStockConflict)
		}
		it.Stock = it.Stock.Sub(qty)
		st.items[id] = it
		return nil
	})
}

func (r *itemRepository) IncrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	return r.v.with(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return entity.ErrNotFound
		}
		it.Stock = it.Stock.Add(qty)
		st.items[id] = it
		return nil
	})
}

type orderRepository struct {
	v   view
	now func() time.Time
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	return r.v.with(func(st *state) error {
		if p, ok := st.persons[o.CustomerID]; !ok || p.Customer == nil {
			return fmt.Errorf("customer %d: %w", o.CustomerID, entity.ErrNotFound)
		}
		for _, existing := range st.orders {
			if existing.Number == o.Number {
				return fmt.Errorf("order %s: %w", o.Number, entity.ErrDuplicate)
			}
		}
		for _, l := range o.Lines {
			if _, ok := st.items[l.ItemID]; !ok {
				return fmt.Errorf("item %d: %w", l.ItemID, entity.ErrNotFound)
			}
		}

		st.nextOrderID++
		o.ID = st.nextOrderID
		if o.CreatedAt.IsZero() {
			o.CreatedAt = r.now()
		}
		for i := range o.Lines {
			st.nextLineID++
			o.Lines[i].ID = st.nextLineID
			o.Lines[i].OrderID = o.ID
		}
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	var out entity.Order
	err := r.v.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = withItemNames(st, copyOrder(o))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]entity.Order, error) {
	var out []entity.Order
	err := r.v.with(func(st *state) error {
		for _, o := range st.orders {
			if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
				continue
			}
			if filter.Pending != nil && (o.Status == entity.StatusPending) != *filter.Pending {
				continue
			}
			out = append(out, withItemNames(st, copyOrder(o)))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	return r.v.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return entity.ErrNotFound
		}
		o = copyOrder(o)
		o.Status = status
		st.orders[id] = o
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return entity.ErrNotFound
		}
		for _, p := range st.payments {
			if p.OrderID == id {
				return fmt.Errorf("order %d: %w", id, entity.ErrOrderHasPayments)
			}
		}
		delete(st.orders, id)
		return nil
	})
}

// withItemNames fills line names from the current catalog, like the join
// the SQL store does.
func withItemNames(st *state, o entity.Order) entity.Order {
	for i := range o.Lines {
		if it, ok := st.items[o.Lines[i].ItemID]; ok {
			o.Lines[i].ItemName = it.Name
		}
	}
	return o
}

type paymentRepository struct {
	v   view
	now func() time.Time
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.orders[p.OrderID]; !ok {
			return fmt.Errorf("order %d: %w", p.OrderID, entity.ErrNotFound)
		}
		for _, existing := range st.payments {
			if existing.ID == p.ID {
				return fmt.Errorf("payment %s: %w", p.ID, entity.ErrDuplicate)
			}
		}
		if p.PaidAt.IsZero() {
			p.PaidAt = r.now()
		}
		stored := *p
		if p.Card != nil {
			card := *p.Card
			stored.Card = &card
		}
		st.payments = append(st.payments, stored)
		return nil
	})
}

func (r *paymentRepository) FindByOrder(ctx context.Context, orderID int64) ([]entity.Payment, error) {
	var out []entity.Payment
	err := r.v.with(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID != orderID {
				continue
			}
			if p.Card != nil {
				card := *p.Card
				p.Card = &card
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (r *paymentRepository) SumByOrder(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.v.with(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				sum = sum.Add(p.Amount)
			}
		}
		return nil
	})
	return sum, err
}

type reportRepository struct {
	v view
}

func (r *reportRepository) SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.v.with(func(st *state) error {
		for _, p := range st.payments {
			if !p.PaidAt.Before(since) {
				total = total.Add(p.Amount)
			}
		}
		return nil
	})
	return total, err
}

func (r *reportRepository) PopularItems(ctx context.Context, limit int) ([]entity.ItemPopularity, error) {
	var out []entity.ItemPopularity
	err := r.v.with(func(st *state) error {
		counts := make(map[int64]int)
		for _, o := range st.orders {
			for _, l := range o.Lines {
				counts[l.ItemID]++
			}
		}
		for id, n := range counts {
			out = append(out, entity.ItemPopularity{ItemID: id, Name: st.items[id].Name, Count: n})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type eventStore struct {
	v   view
	now func() time.Time
}

func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.v.with(func(st *state) error {
		stream := st.events[streamID]
		if len(stream) != expectedVersion {
			return fmt.Errorf("%w: stream %s expected version %d, got %d", entity.ErrVersionConflict, streamID, expectedVersion, len(stream))
		}

		now := s.now()
		for _, e := range events {
			payload, err := marshalEvent(e)
			if err != nil {
				return err
			}
			stream = append(stream, entity.EventStoreRecord{
				ID:         uuid.NewString(),
				StreamID:   streamID,
				StreamType: streamType,
				Version:    len(stream) + 1,
				EventType:  e.EventType(),
				Payload:    payload,
				CreatedAt:  now,
			})
		}
		st.events[streamID] = stream
		return nil
	})
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	var out []entity.EventStoreRecord
	err := s.v.with(func(st *state) error {
		out = append(out, st.events[streamID]...)
		return nil
	})
	return out, err
}

func marshalEvent(e entity.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.EventType(), err)
	}
	return payload, nil
}
