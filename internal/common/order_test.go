package common

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustOrder(t *testing.T, id OrderID, symbol string, side Side, qty uint64, price string) *Order {
	t.Helper()
	order, err := NewOrder(id, symbol, side, qty, decimal.RequireFromString(price), time.Unix(0, 0))
	require.NoError(t, err)
	return order
}

func TestNewOrder(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	order, err := NewOrder(7, "XYZ", Sell, 25, decimal.RequireFromString("12.5"), ts)
	require.NoError(t, err)

	assert.Equal(t, OrderID(7), order.ID)
	assert.Equal(t, LimitOrder, order.Kind)
	assert.Equal(t, uint64(25), order.Quantity)
	assert.Equal(t, uint64(25), order.TotalQuantity)
	assert.Equal(t, ts, order.Timestamp)
	assert.False(t, order.Filled())
	assert.Contains(t, order.String(), "Price: 12.50")
}

func TestNewOrder_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		side   Side
		qty    uint64
		price  string
		want   error
	}{
		{"quantity", "X", Buy, 0, "1", ErrInvalidQuantity},
		{"price", "X", Buy, 1, "-1", ErrInvalidPrice},
		{"side", "X", Side(-1), 1, "1", ErrInvalidSide},
		{"symbol", "", Sell, 1, "1", ErrInvalidSymbol},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order, err := NewOrder(1, tc.symbol, tc.side, tc.qty, decimal.RequireFromString(tc.price), time.Now())
			assert.Nil(t, order)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tc.want)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.name, verr.Field)
		})
	}
}

func TestReduceQuantity(t *testing.T) {
	order := mustOrder(t, 3, "X", Buy, 10, "1")

	require.NoError(t, order.ReduceQuantity(4))
	assert.Equal(t, uint64(6), order.Quantity)

	err := order.ReduceQuantity(7)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	var qerr *InsufficientQuantityError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, OrderID(3), qerr.OrderID)
	assert.Equal(t, uint64(6), qerr.Remaining)
	assert.Equal(t, uint64(6), order.Quantity, "failed reduction leaves the order alone")

	require.NoError(t, order.ReduceQuantity(6))
	assert.True(t, order.Filled())
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b *Order
		want bool
	}{
		{"cross", mustOrder(t, 1, "X", Buy, 1, "10"), mustOrder(t, 2, "X", Sell, 1, "9.99"), true},
		{"touch", mustOrder(t, 1, "X", Buy, 1, "10"), mustOrder(t, 2, "X", Sell, 1, "10.00"), true},
		{"no cross", mustOrder(t, 1, "X", Buy, 1, "9.99"), mustOrder(t, 2, "X", Sell, 1, "10"), false},
		{"same side", mustOrder(t, 1, "X", Buy, 1, "10"), mustOrder(t, 2, "X", Buy, 1, "10"), false},
		{"other symbol", mustOrder(t, 1, "X", Buy, 1, "10"), mustOrder(t, 2, "Y", Sell, 1, "1"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Matches(tc.b))
			assert.Equal(t, tc.want, tc.b.Matches(tc.a))
		})
	}
	assert.False(t, mustOrder(t, 1, "X", Buy, 1, "1").Matches(nil))
}

func TestProperty_MatchesIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		draw := func(label string) *Order {
			return &Order{
				ID:       OrderID(rapid.Uint64().Draw(t, label+" id")),
				Symbol:   rapid.SampledFrom([]string{"A", "B"}).Draw(t, label+" symbol"),
				Side:     rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, label+" side"),
				Price:    decimal.New(rapid.Int64Range(0, 1000).Draw(t, label+" price"), -1),
				Quantity: 1,
			}
		}
		a, b := draw("a"), draw("b")
		if a.Matches(b) != b.Matches(a) {
			t.Fatalf("asymmetric match: %v / %v", a, b)
		}
	})
}

func TestMatchRule(t *testing.T) {
	assert.True(t, matchRule(LimitOrder, LimitOrder))
	assert.False(t, matchRule(LimitOrder, OrderKind(99)))
	assert.False(t, matchRule(OrderKind(99), LimitOrder))
}

func TestPriceFromFloat(t *testing.T) {
	price, err := PriceFromFloat(10.25)
	require.NoError(t, err)
	assert.Equal(t, "10.25", price.String())

	for _, bad := range []float64{-0.5, math.NaN(), math.Inf(1)} {
		_, err := PriceFromFloat(bad)
		assert.ErrorIs(t, err, ErrInvalidPrice, "%v", bad)
	}
}

func TestParsePriceRule(t *testing.T) {
	for _, rule := range []PriceRule{SellPrice, RestingPrice} {
		parsed, err := ParsePriceRule(rule.String())
		require.NoError(t, err)
		assert.Equal(t, rule, parsed)
	}
	_, err := ParsePriceRule("midpoint")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookView_String(t *testing.T) {
	order := mustOrder(t, 1, "X", Buy, 3, "4.5")
	view := BookView{Symbol: "X", Bids: []OrderView{ViewOf(order)}}

	out := view.String()
	assert.True(t, strings.HasPrefix(out, "Order Book (Symbol: X)"))
	assert.Contains(t, out, "ID: 1 | Qty: 3 | Price: 4.50")
	assert.False(t, view.Empty())
	assert.True(t, BookView{}.Empty())
}

func TestTrade_Notional(t *testing.T) {
	trade := Trade{Quantity: 30, Price: decimal.RequireFromString("9.50")}
	assert.Equal(t, "285", trade.Notional().String())
}

func TestSide(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.False(t, Side(5).Valid())
	assert.Equal(t, "Unknown", Side(5).String())
}
