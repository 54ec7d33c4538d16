package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plazza/internal/pizza"
)

func TestOrderPayloadRoundTrip(t *testing.T) {
	orig := OrderPayload{Type: pizza.Fantasia, Size: pizza.SizeXXL, Quantity: 1, OrderID: 99}
	got, err := UnpackOrder(orig.Pack())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestStatusPayloadRoundTrip(t *testing.T) {
	orig := StatusPayload{
		KitchenID:     3,
		BusyCooks:     2,
		TotalCooks:    4,
		PendingPizzas: 5,
		Stock: []StockEntry{
			{Ingredient: pizza.Dough, Count: 5},
			{Ingredient: pizza.Tomato, Count: 4},
			{Ingredient: pizza.ChiefLove, Count: 0},
		},
	}
	got, err := UnpackStatus(orig.Pack())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestStatusPayloadRoundTripEmptyStock(t *testing.T) {
	orig := StatusPayload{KitchenID: 1, BusyCooks: 0, TotalCooks: 2, PendingPizzas: 0}
	got, err := UnpackStatus(orig.Pack())
	require.NoError(t, err)
	assert.Empty(t, got.Stock)
}

func TestCompletionPayloadRoundTrip(t *testing.T) {
	orig := CompletionPayload{
		Pizza: pizza.Pizza{
			Type:      pizza.Regina,
			Size:      pizza.SizeL,
			OrderID:   42,
			KitchenID: 7,
		},
		CompletionNano: 1234567890123,
	}
	got, err := UnpackCompletion(orig.Pack())
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestUnpackOrderTruncatedBuffer(t *testing.T) {
	b := NewBuffer()
	b.PutUint32(1)
	_, err := UnpackOrder(b)
	assert.Error(t, err)
}
