// Package pricing turns an order request into a priced order and the stock
// reservations that must be applied with it. It does no I/O: the caller loads
// (and locks) the customer and the items, runs the engine, and commits the
// result inside one transaction.
package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

var (
	// OwingCeiling is the most a private customer may owe and still order.
	OwingCeiling = decimal.NewFromInt(100)
	// BoxBasePrice is multiplied by the size tier and the box count.
	BoxBasePrice = decimal.NewFromInt(10)
	// CorporateMultiplier applies the flat corporate discount to the whole order.
	CorporateMultiplier = decimal.RequireFromString("0.9")
	// DeliveryFee is added when delivery is requested within DeliveryRadius.
	DeliveryFee = decimal.NewFromInt(10)
)

// DeliveryRadius is the largest store distance that still gets delivery.
const DeliveryRadius = 20.0

var boxMultipliers = map[entity.BoxSize]decimal.Decimal{
	entity.BoxSmall:  decimal.RequireFromString("1.0"),
	entity.BoxMedium: decimal.RequireFromString("1.5"),
	entity.BoxLarge:  decimal.RequireFromString("2.0"),
}

// Line is one requested (item, mode, quantity) triple.
type Line struct {
	ItemID   int64              `json:"item_id"`
	Mode     entity.PricingMode `json:"mode"`
	Quantity int                `json:"quantity"`
}

// BoxSelection asks for Count premade boxes of one size.
type BoxSelection struct {
	Size  entity.BoxSize `json:"size"`
	Count int            `json:"count"`
}

// Request is submitted atomically by one actor for one customer.
type Request struct {
	Lines    []Line        `json:"lines"`
	Box      *BoxSelection `json:"box,omitempty"`
	Delivery bool          `json:"delivery"`
}

// Catalog is the engine's read view of the items a request touches.
type Catalog interface {
	Item(id int64) (entity.Item, bool)
	Box(size entity.BoxSize) (entity.Item, bool)
}

// Reservation is the physical stock to take from one item.
type Reservation struct {
	ItemID   int64           `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PricedOrder is the engine's output. Total keeps full precision; use
// DisplayTotal for presentation.
type PricedOrder struct {
	Number       string             `json:"order_number"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Discount     decimal.Decimal    `json:"discount"`
	DeliveryFee  decimal.Decimal    `json:"delivery_fee"`
	Total        decimal.Decimal    `json:"total"`
	Delivery     bool               `json:"delivery"`
	Lines        []entity.OrderLine `json:"lines"`
	Reservations []Reservation      `json:"reservations"`
}

// DisplayTotal renders the total with two decimal places.
func (p *PricedOrder) DisplayTotal() string {
	return p.Total.StringFixed(2)
}

// NumberGenerator hands out unique order numbers.
type NumberGenerator interface {
	Next() string
}

// Engine prices order requests and stages their stock reservations.
type Engine struct {
	numbers NumberGenerator
}

// NewEngine returns an Engine that numbers orders with numbers.
func NewEngine(numbers NumberGenerator) *Engine {
	return &Engine{numbers: numbers}
}

// CheckEligibility applies the credit rules that gate ordering at all.
func CheckEligibility(c entity.Customer) error {
	if c.IsCorporate() {
		if c.Balance.LessThan(c.Corporate.CreditCeiling) {
			return entity.ErrCreditBlocked
		}
		return nil
	}
	if c.Owing.GreaterThan(OwingCeiling) {
		return entity.ErrOwingExceeded
	}
	return nil
}

// BoxPrice returns the price of count boxes of the given size.
func BoxPrice(size entity.BoxSize, count int) (decimal.Decimal, error) {
	mult, ok := boxMultipliers[size]
	if !ok {
		return decimal.Zero, entity.ErrUnknownBoxSize
	}
	return BoxBasePrice.Mul(mult).Mul(decimal.NewFromInt(int64(count))), nil
}

// PriceAndReserve prices req for customer against catalog. It either returns
// a complete priced order with every reservation staged, or a rejection and
// nothing at all.
func (e *Engine) PriceAndReserve(customer entity.Customer, catalog Catalog, req Request) (*PricedOrder, error) {
	if err := CheckEligibility(customer); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	staged := make(map[int64]decimal.Decimal)
	var lines []entity.OrderLine

	for _, l := range req.Lines {
		if l.Quantity < 0 {
			return nil, entity.ErrInvalidQuantity
		}
		if l.Quantity == 0 {
			continue
		}

		item, ok := catalog.Item(l.ItemID)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", l.ItemID, entity.ErrNotFound)
		}
		if !item.Accepts(l.Mode) {
			return nil, fmt.Errorf("item %s ordered by %q: %w", item.Name, l.Mode, entity.ErrModeMismatch)
		}

		rate, consumed := linePricing(item, l)
		available := item.Stock.Sub(staged[item.ID])
		if consumed.GreaterThan(available) {
			return nil, &entity.InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: available,
			}
		}

		lineTotal := rate.Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		staged[item.ID] = staged[item.ID].Add(consumed)
		lines = append(lines, entity.OrderLine{
			ItemID:        item.ID,
			ItemName:      item.Name,
			Quantity:      l.Quantity,
			Mode:          l.Mode,
			StockConsumed: consumed,
			LineTotal:     lineTotal,
		})
	}

	if b := req.Box; b != nil && b.Count != 0 {
		if b.Count < 0 {
			return nil, entity.ErrInvalidQuantity
		}
		price, err := BoxPrice(b.Size, b.Count)
		if err != nil {
			return nil, err
		}
		box, ok := catalog.Box(b.Size)
		if !ok {
			return nil, entity.ErrUnknownBoxSize
		}
		subtotal = subtotal.Add(price)
		lines = append(lines, entity.OrderLine{
			ItemID:        box.ID,
			ItemName:      box.Name,
			Quantity:      b.Count,
			Mode:          entity.ModeBox,
			StockConsumed: decimal.Zero,
			LineTotal:     price,
		})
	}

	if len(lines) == 0 {
		return nil, entity.ErrEmptyOrder
	}

	total := subtotal
	if customer.IsCorporate() {
		total = subtotal.Mul(CorporateMultiplier)
	}
	discount := subtotal.Sub(total)

	fee := decimal.Zero
	delivery := req.Delivery && customer.DistanceFromStore <= DeliveryRadius
	if delivery {
		fee = DeliveryFee
		total = total.Add(fee)
	}

	return &PricedOrder{
		Number:       e.numbers.Next(),
		Subtotal:     subtotal,
		Discount:     discount,
		DeliveryFee:  fee,
		Total:        total,
		Delivery:     delivery,
		Lines:        lines,
		Reservations: reservations(staged),
	}, nil
}

// linePricing picks the per-unit rate and the physical quantity consumed for
// one line. The mode has already been checked against the item.
func linePricing(item entity.Item, l Line) (rate, consumed decimal.Decimal) {
	qty := decimal.NewFromInt(int64(l.Quantity))
	if l.Mode == entity.ModePlain {
		return item.Price, qty
	}
	return item.Variant.Rate, qty.Mul(item.Variant.PerOrderUnit)
}

// reservations flattens the staged consumption in ascending item order, which
// is also the order rows are locked and updated in.
func reservations(staged map[int64]decimal.Decimal) []Reservation {
	out := make([]Reservation, 0, len(staged))
	for id, qty := range staged {
		out = append(out, Reservation{ItemID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// ItemIDs lists the distinct items a request's lines reference, ascending.
func (r Request) ItemIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range r.Lines {
		if l.Quantity == 0 || seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true
		ids = append(ids, l.ItemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
