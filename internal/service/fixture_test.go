package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/pricing"
	"github.com/reisinl/veg-shop/internal/repository/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type published struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: key, event: event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher

	orders    *OrderService
	payments  *PaymentService
	customers *CustomerService
	reports   *ReportService

	staff     Actor
	pat       Actor // private, owing 50
	debtor    Actor // private, owing 150
	cora      Actor // corporate, balance 5000, ceiling 1000
	broke     Actor // corporate, balance 500, ceiling 1000
	faraway   Actor // private, 35 km from the store
	carrot    entity.Item
	potato    entity.Item
	pumpkin   entity.Item
	mediumBox entity.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()
	repos := s.Repos()

	f := &fixture{store: s, publisher: &recordingPublisher{}}

	staff := &entity.Person{Username: "sam", FirstName: "Sam", LastName: "Staff", PasswordHash: "x", Kind: entity.PersonStaff,
		Staff: &entity.StaffInfo{StaffCode: "S001", Department: "Sales"}}
	require.NoError(t, repos.Persons.Create(ctx, staff))
	f.staff = Actor{PersonID: staff.ID, Username: staff.Username, Role: entity.RoleStaff}

	customer := func(username, first, last string, c entity.Customer) Actor {
		p := &entity.Person{Username: username, FirstName: first, LastName: last, PasswordHash: "x", Kind: entity.PersonCustomer, Customer: &c}
		if c.Corporate != nil {
			p.Kind = entity.PersonCorporate
		}
		require.NoError(t, repos.Persons.Create(ctx, p))
		return Actor{PersonID: p.ID, Username: username, Role: entity.RoleCustomer}
	}
	f.pat = customer("pat", "Pat", "Private", entity.Customer{Address: "1 Elm St", Balance: d("40"), Owing: d("50"), DistanceFromStore: 5})
	f.debtor = customer("dan", "Dan", "Debtor", entity.Customer{Address: "2 Elm St", Owing: d("150"), DistanceFromStore: 5})
	f.cora = customer("cora", "Cora", "Corp", entity.Customer{Address: "3 Elm St", Balance: d("5000"), DistanceFromStore: 5,
		Corporate: &entity.CorporateInfo{CreditCeiling: d("1000"), DiscountRate: d("0.1"), MaxCredit: d("10000")}})
	f.broke = customer("bree", "Bree", "Broke", entity.Customer{Address: "4 Elm St", Balance: d("500"), DistanceFromStore: 5,
		Corporate: &entity.CorporateInfo{CreditCeiling: d("1000"), DiscountRate: d("0.1"), MaxCredit: d("10000")}})
	f.faraway = customer("fay", "Fay", "Faraway", entity.Customer{Address: "5 Far Rd", DistanceFromStore: 35})

	item := func(it entity.Item) entity.Item {
		require.NoError(t, repos.Items.Create(ctx, &it))
		return it
	}
	f.carrot = item(entity.Item{Name: "Carrot", Price: d("0.5"), Stock: d("10"), Kind: entity.ItemUnit,
		Variant: &entity.VariantPricing{Rate: d("2.0"), PerOrderUnit: d("1")}})
	f.potato = item(entity.Item{Name: "Potato", Price: d("1"), Stock: d("20"), Kind: entity.ItemWeighted,
		Variant: &entity.VariantPricing{Rate: d("3.5"), PerOrderUnit: d("0.5")}})
	f.pumpkin = item(entity.Item{Name: "Pumpkin", Price: d("7.25"), Stock: d("5"), Kind: entity.ItemPlain})
	item(entity.Item{Name: "Small Box", Price: d("10"), Stock: d("100"), Kind: entity.ItemBox, Box: &entity.BoxInfo{Size: entity.BoxSmall}})
	f.mediumBox = item(entity.Item{Name: "Medium Box", Price: d("15"), Stock: d("100"), Kind: entity.ItemBox, Box: &entity.BoxInfo{Size: entity.BoxMedium}})

	f.orders = NewOrderService(s, pricing.NewEngine(pricing.NewULIDNumbers()), f.publisher)
	f.payments = NewPaymentService(s, f.publisher)
	f.customers = NewCustomerService(s)
	f.reports = NewReportService(s)
	return f
}

func (f *fixture) stock(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	it, err := f.store.Repos().Items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return it.Stock
}

func (f *fixture) account(t *testing.T, a Actor) *entity.Customer {
	t.Helper()
	c, err := f.store.Repos().Persons.FindCustomer(context.Background(), a.PersonID)
	require.NoError(t, err)
	return c
}

func lines(ls ...pricing.Line) PlaceOrderRequest {
	return PlaceOrderRequest{Request: pricing.Request{Lines: ls}}
}

func (f *fixture) place(t *testing.T, actor Actor, req PlaceOrderRequest) *PlacedOrder {
	t.Helper()
	placed, err := f.orders.PlaceOrder(context.Background(), actor, req)
	require.NoError(t, err)
	return placed
}
