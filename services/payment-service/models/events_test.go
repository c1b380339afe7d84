package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusSuccess, true},
		{PaymentStatusProcessing, PaymentStatusFailed, true},
		{PaymentStatusProcessing, PaymentStatusPending, false},
		{PaymentStatusSuccess, PaymentStatusSuccess, true},
		{PaymentStatusSuccess, PaymentStatusFailed, false},
		{PaymentStatusFailed, PaymentStatusSuccess, false},
		{PaymentStatusFailed, PaymentStatusProcessing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderCreatedEvent_DecodeIsCaseInsensitive(t *testing.T) {
	raw := `{"Order_ID":"ord-1","USER_ID":"u-1","Total_Price":100.00,"Items":[{"Product_Id":"100","PRICE":"50.00","Quantity":2,"Size":"M"}]}`

	var evt OrderCreatedEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &evt))

	assert.Equal(t, "ord-1", evt.OrderID)
	assert.True(t, evt.TotalPrice.Equal(decimal.NewFromInt(100)))
	require.Len(t, evt.Items, 1)
	assert.Equal(t, 2, evt.Items[0].Quantity)
	assert.NoError(t, evt.Validate())
}

func TestOrderCreatedEvent_Validate(t *testing.T) {
	valid := OrderCreatedEvent{SchemaVersion: 1, OrderID: "ord-1", TotalPrice: decimal.RequireFromString("10.50")}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.OrderID = ""
	assert.True(t, errors.Is(noID.Validate(), ErrInvalidEvent))

	zero := valid
	zero.TotalPrice = decimal.Zero
	assert.Error(t, zero.Validate())

	future := valid
	future.SchemaVersion = 9
	assert.Error(t, future.Validate())
}

func TestStatusesLeadingTo(t *testing.T) {
	assert.Equal(t,
		[]PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess},
		StatusesLeadingTo(PaymentStatusSuccess))
	assert.Equal(t,
		[]PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed},
		StatusesLeadingTo(PaymentStatusFailed))
}

func TestOrderCreatedEvent_ValidateItemsAndCurrency(t *testing.T) {
	valid := OrderCreatedEvent{
		SchemaVersion: 1,
		OrderID:       "ord-1",
		TotalPrice:    decimal.RequireFromString("100.00"),
		Currency:      "usd",
		Items:         []OrderCreatedItem{{ProductID: "100", Price: decimal.RequireFromString("50.00"), Quantity: 2}},
	}
	require.NoError(t, valid.Validate())

	zeroQty := valid
	zeroQty.Items = []OrderCreatedItem{{ProductID: "100", Quantity: 0}}
	err := zeroQty.Validate()
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.ErrorContains(t, err, "items[0].quantity")

	badCurrency := valid
	badCurrency.Currency = "dollars"
	assert.ErrorContains(t, badCurrency.Validate(), "currency")

	negative := valid
	negative.TotalPrice = decimal.RequireFromString("-1")
	assert.ErrorContains(t, negative.Validate(), "total_price failed positive_decimal")

	older := valid
	older.SchemaVersion = -1
	assert.ErrorContains(t, older.Validate(), "schema_version failed min=0")
}
