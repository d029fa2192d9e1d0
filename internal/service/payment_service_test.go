package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/pricing"
)

func corporateBoxOrder(t *testing.T, f *fixture) *PlacedOrder {
	t.Helper()
	return f.place(t, f.cora, PlaceOrderRequest{Request: pricing.Request{
		Box: &pricing.BoxSelection{Size: entity.BoxMedium, Count: 2},
	}})
}

func TestPay_FullPaymentCompletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := corporateBoxOrder(t, f)

	res, err := f.payments.Pay(ctx, f.cora, placed.Order.ID, PaymentRequest{Method: "Account", Amount: d("27")})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, res.Status)
	assert.True(t, res.Due.IsZero())

	account := f.account(t, f.cora)
	assert.True(t, d("4973").Equal(account.Balance))
	assert.True(t, account.Owing.IsZero())

	details, err := f.orders.GetOrder(ctx, f.cora, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, details.Order.Status)

	assert.Equal(t, []string{messaging.TopicOrdersPlaced, messaging.TopicOrdersPaid, messaging.TopicOrdersCompleted}, f.publisher.topics())
}

func TestPay_PartialPaymentLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := corporateBoxOrder(t, f)

	res, err := f.payments.Pay(ctx, f.cora, placed.Order.ID, PaymentRequest{
		Method: "Debit Card", Amount: d("10"),
		Card: &CardInput{Number: "5555 4444 3333 1234", BankName: "First Bank"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, res.Status)
	assert.True(t, d("17").Equal(res.Due))
	require.NotNil(t, res.Payment.Card)
	assert.Equal(t, "1234", res.Payment.Card.Last4)

	assert.True(t, d("5000").Equal(f.account(t, f.cora).Balance))

	res, err = f.payments.Pay(ctx, f.staff, placed.Order.ID, PaymentRequest{
		Method: "Credit Card", Amount: d("17"),
		Card: &CardInput{Number: "4111111111111111", Expiry: "12/29", CardType: "Visa"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, res.Status)
	assert.True(t, d("27").Equal(res.Paid))

	history, err := f.orders.History(ctx, f.cora, placed.Order.Number)
	require.NoError(t, err)
	var types []string
	for _, e := range history.Events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"OrderPlaced", "PaymentRecorded", "PaymentRecorded", "OrderCompleted"}, types)
	assert.True(t, history.Due.IsZero())
}

func TestPay_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := f.place(t, f.pat, lines(pricing.Line{ItemID: f.pumpkin.ID, Quantity: 1}))

	tests := []struct {
		name  string
		actor Actor
		req   PaymentRequest
		want  error
	}{
		{"unknown method", f.pat, PaymentRequest{Method: "Cheque", Amount: d("1")}, entity.ErrPaymentMethodInvalid},
		{"zero amount", f.pat, PaymentRequest{Method: "Account", Amount: d("0")}, entity.ErrInvalidAmount},
		{"negative amount", f.pat, PaymentRequest{Method: "Account", Amount: d("-5")}, entity.ErrInvalidAmount},
		{"balance too low", f.pat, PaymentRequest{Method: "Account", Amount: d("40.01")}, entity.ErrInsufficientBalance},
		{"card without number", f.pat, PaymentRequest{Method: "Credit Card", Amount: d("1")}, entity.ErrInvalidInput},
		{"card with letters", f.pat, PaymentRequest{Method: "Credit Card", Amount: d("1"), Card: &CardInput{Number: "4111abcd"}}, entity.ErrInvalidInput},
		{"someone else's order", f.cora, PaymentRequest{Method: "Account", Amount: d("1")}, entity.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.Pay(ctx, tt.actor, placed.Order.ID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.True(t, d("40").Equal(f.account(t, f.pat).Balance))
	details, err := f.orders.GetOrder(ctx, f.pat, placed.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Payments)
}

func TestPay_CompletedOrderRejectsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := corporateBoxOrder(t, f)

	_, err := f.payments.Pay(ctx, f.cora, placed.Order.ID, PaymentRequest{Method: "Account", Amount: d("27")})
	require.NoError(t, err)

	_, err = f.payments.Pay(ctx, f.cora, placed.Order.ID, PaymentRequest{Method: "Account", Amount: d("1")})
	assert.ErrorIs(t, err, entity.ErrOrderNotPending)
}

func TestPay_ReducesOwingFlooredAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := f.place(t, f.pat, lines(pricing.Line{ItemID: f.carrot.ID, Mode: entity.ModeUnit, Quantity: 3}))
	require.True(t, d("56").Equal(f.account(t, f.pat).Owing))

	_, err := f.payments.Pay(ctx, f.pat, placed.Order.ID, PaymentRequest{Method: "Credit Card", Amount: d("100"), Card: &CardInput{Number: "4111111111111111"}})
	require.NoError(t, err)
	assert.True(t, f.account(t, f.pat).Owing.IsZero())
}
