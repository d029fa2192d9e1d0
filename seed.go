package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
	"github.com/reisinl/veg-shop/internal/service"
)

const demoPassword = "password"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedShop fills an empty store with demo staff, customers, vegetables and
// premade boxes. It does nothing once anyone exists.
func seedShop(ctx context.Context, store repository.Store) error {
	count, err := store.Repos().Persons.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count persons: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := service.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	persons := []*entity.Person{
		{Username: "staff", FirstName: "Sally", LastName: "Green", Kind: entity.PersonStaff,
			Staff: &entity.StaffInfo{StaffCode: "ST001", Department: "Sales", DateJoined: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}},
		{Username: "alice", FirstName: "Alice", LastName: "Brown", Kind: entity.PersonCustomer,
			Customer: &entity.Customer{Address: "12 Market Lane", CustomerCode: "C001", Balance: dec("80"), Owing: dec("20"), DistanceFromStore: 4.5}},
		{Username: "bob", FirstName: "Bob", LastName: "Carter", Kind: entity.PersonCustomer,
			Customer: &entity.Customer{Address: "77 Hill Road", CustomerCode: "C002", Owing: dec("120"), DistanceFromStore: 25}},
		{Username: "freshco", FirstName: "Fresh", LastName: "Co", Kind: entity.PersonCorporate,
			Customer: &entity.Customer{Address: "1 Industrial Way", CustomerCode: "C003", Balance: dec("5000"), DistanceFromStore: 12,
				Corporate: &entity.CorporateInfo{CreditCeiling: dec("1000"), DiscountRate: dec("0.1"), MaxCredit: dec("10000")}}},
	}

	items := []*entity.Item{
		{Name: "Carrot", Description: "Sold by the piece", Price: dec("0.5"), Stock: dec("200"), Kind: entity.ItemUnit,
			Variant: &entity.VariantPricing{Rate: dec("0.5"), PerOrderUnit: dec("1")}},
		{Name: "Potato", Description: "Sold by the half kilo", Price: dec("2"), Stock: dec("150"), Kind: entity.ItemWeighted,
			Variant: &entity.VariantPricing{Rate: dec("2"), PerOrderUnit: dec("0.5")}},
		{Name: "Cherry Tomatoes", Description: "Pack of 250g", Price: dec("3.5"), Stock: dec("60"), Kind: entity.ItemPack,
			Variant: &entity.VariantPricing{Rate: dec("3.5"), PerOrderUnit: dec("1")}},
		{Name: "Pumpkin", Description: "Whole pumpkin", Price: dec("6"), Stock: dec("25"), Kind: entity.ItemPlain},
		{Name: "Small Box", Description: "Seasonal vegetables for one", Price: dec("10"), Stock: dec("0"), Kind: entity.ItemBox,
			Box: &entity.BoxInfo{Size: entity.BoxSmall}},
		{Name: "Medium Box", Description: "Seasonal vegetables for two", Price: dec("15"), Stock: dec("0"), Kind: entity.ItemBox,
			Box: &entity.BoxInfo{Size: entity.BoxMedium}},
		{Name: "Large Box", Description: "Seasonal vegetables for a family", Price: dec("20"), Stock: dec("0"), Kind: entity.ItemBox,
			Box: &entity.BoxInfo{Size: entity.BoxLarge}},
	}

	return store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		for _, p := range persons {
			p.PasswordHash = hash
			if err := repos.Persons.Create(ctx, p); err != nil {
				return fmt.Errorf("failed to seed %s: %w", p.Username, err)
			}
		}
		for _, it := range items {
			if err := repos.Items.Create(ctx, it); err != nil {
				return fmt.Errorf("failed to seed %s: %w", it.Name, err)
			}
		}
		slog.Info("Seeded demo data", "persons", len(persons), "items", len(items))
		return nil
	})
}
