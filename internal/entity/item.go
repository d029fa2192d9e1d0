package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemKind tags the variant stored in the shared items table.
type ItemKind string

const (
	ItemPlain    ItemKind = "plain"
	ItemUnit     ItemKind = "unit"
	ItemWeighted ItemKind = "weight"
	ItemPack     ItemKind = "pack"
	ItemBox      ItemKind = "box"
)

// PricingMode is the strategy a requester picks for one order line.
type PricingMode string

const (
	ModePlain  PricingMode = ""
	ModeUnit   PricingMode = "unit"
	ModeWeight PricingMode = "weight"
	ModePack   PricingMode = "pack"
	ModeBox    PricingMode = "box"
)

// ParsePricingMode accepts the spellings the order form uses, plus "box" as
// recorded on box lines.
func ParsePricingMode(s string) (PricingMode, bool) {
	switch s {
	case "", "plain":
		return ModePlain, true
	case "unit":
		return ModeUnit, true
	case "weight":
		return ModeWeight, true
	case "pack":
		return ModePack, true
	case "box":
		return ModeBox, true
	default:
		return "", false
	}
}

// UnmarshalText decodes the mode through ParsePricingMode and rejects unknown
// spellings.
func (m *PricingMode) UnmarshalText(b []byte) error {
	mode, ok := ParsePricingMode(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown pricing mode %q", ErrInvalidInput, string(b))
	}
	*m = mode
	return nil
}

// BoxSize is the tier of a premade box.
type BoxSize string

const (
	BoxSmall  BoxSize = "Small"
	BoxMedium BoxSize = "Medium"
	BoxLarge  BoxSize = "Large"
)

// Item is a sellable catalog entry. Variant is set for unit, weight and pack
// items; Box is set for premade boxes.
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       decimal.Decimal `json:"stock_quantity"`
	Kind        ItemKind        `json:"kind"`
	Variant     *VariantPricing `json:"variant,omitempty"`
	Box         *BoxInfo        `json:"box,omitempty"`
}

// VariantPricing is the rate charged per ordered unit and the physical
// quantity (units, kilos or packs) one ordered unit takes out of stock.
type VariantPricing struct {
	Rate         decimal.Decimal `json:"rate"`
	PerOrderUnit decimal.Decimal `json:"per_order_unit"`
}

type BoxInfo struct {
	Size BoxSize `json:"size"`
}

// Accepts reports whether an order line in the given mode can be priced
// against this item. Plain pricing works for any loose item.
func (i *Item) Accepts(mode PricingMode) bool {
	switch mode {
	case ModePlain:
		return i.Kind != ItemBox
	case ModeUnit:
		return i.Kind == ItemUnit && i.Variant != nil
	case ModeWeight:
		return i.Kind == ItemWeighted && i.Variant != nil
	case ModePack:
		return i.Kind == ItemPack && i.Variant != nil
	}
	return false
}
