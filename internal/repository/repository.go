package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

// PersonRepository handles persistence for staff and customers.
type PersonRepository interface {
	Create(ctx context.Context, p *entity.Person) error
	FindByID(ctx context.Context, id int64) (*entity.Person, error)
	FindByUsername(ctx context.Context, username string) (*entity.Person, error)
	FindCustomer(ctx context.Context, id int64) (*entity.Customer, error)
	// LockCustomer reads a customer and holds its row until the transaction ends.
	LockCustomer(ctx context.Context, id int64) (*entity.Customer, error)
	ListCustomers(ctx context.Context) ([]entity.Customer, error)
	UpdateCustomerAccount(ctx context.Context, id int64, balance, owing decimal.Decimal) error
	Count(ctx context.Context) (int, error)
}

// ItemRepository handles persistence for catalog items.
type ItemRepository interface {
	Create(ctx context.Context, item *entity.Item) error
	FindAll(ctx context.Context) ([]entity.Item, error)
	FindByID(ctx context.Context, id int64) (*entity.Item, error)
	// LockByIDs reads the given items in ascending id order and holds their
	// rows until the transaction ends. Unknown ids are skipped.
	LockByIDs(ctx context.Context, ids []int64) ([]entity.Item, error)
	FindBoxBySize(ctx context.Context, size entity.BoxSize) (*entity.Item, error)
	// DecrementStock fails with entity.ErrStockConflict instead of going negative.
	DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error
	IncrementStock(ctx context.Context, id int64, qty decimal.Decimal) error
}

// OrderFilter narrows order listings. A nil CustomerID lists everyone's orders.
type OrderFilter struct {
	CustomerID *int64
	Pending    *bool
}

// OrderRepository handles persistence for orders and their lines.
type OrderRepository interface {
	// Create inserts the order and its lines and fills in the generated ids.
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id int64) (*entity.Order, error)
	LockByID(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error
	// Delete removes the order together with its lines.
	Delete(ctx context.Context, id int64) error
}

// PaymentRepository handles persistence for payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *entity.Payment) error
	FindByOrder(ctx context.Context, orderID int64) ([]entity.Payment, error)
	SumByOrder(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

// ReportRepository runs the read-only aggregations behind the staff reports.
type ReportRepository interface {
	SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	PopularItems(ctx context.Context, limit int) ([]entity.ItemPopularity, error)
}

// EventStore handles appending and loading events for an aggregate stream.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Persons  PersonRepository
	Items    ItemRepository
	Orders   OrderRepository
	Payments PaymentRepository
	Reports  ReportRepository
	Events   EventStore
}

// Store owns the transaction boundary. Everything fn does through the given
// repositories commits together or not at all.
type Store interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
