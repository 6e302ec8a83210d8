package common

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            OrderID         // Engine assigned sequence number
	Kind          OrderKind       //
	Symbol        string          // Specific asset identifier
	Side          Side            // Order side
	Price         decimal.Decimal // Limiting price
	Quantity      uint64          // Remaining quantity
	TotalQuantity uint64          // Total volume requested
	Timestamp     time.Time       // Time of arrival of order into the engine
	Owner         string          // Who owns this order, empty for in-process callers
}

// NewOrder validates a submission and builds a limit order from it. Nothing is
// allocated for rejected submissions.
func NewOrder(
	id OrderID,
	symbol string,
	side Side,
	quantity uint64,
	price decimal.Decimal,
	timestamp time.Time,
) (*Order, error) {
	if err := ValidateSubmission(symbol, side, quantity, price); err != nil {
		return nil, err
	}
	return &Order{
		ID:            id,
		Kind:          LimitOrder,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		TotalQuantity: quantity,
		Timestamp:     timestamp,
	}, nil
}

// ValidateSubmission runs the admission checks without creating an order.
func ValidateSubmission(symbol string, side Side, quantity uint64, price decimal.Decimal) error {
	switch {
	case symbol == "":
		return newValidationError("symbol", ErrInvalidSymbol)
	case !side.Valid():
		return newValidationError("side", ErrInvalidSide)
	case quantity == 0:
		return newValidationError("quantity", ErrInvalidQuantity)
	case price.IsNegative():
		return newValidationError("price", ErrInvalidPrice)
	}
	return nil
}

// PriceFromFloat converts a wire or command line price. NaN and infinities are
// rejected here since decimal cannot represent them.
func PriceFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, &ValidationError{
			Field: "price", Reason: fmt.Sprintf("%v is not a number", f), cause: ErrInvalidPrice,
		}
	}
	price := decimal.NewFromFloat(f)
	if price.IsNegative() {
		return decimal.Zero, newValidationError("price", ErrInvalidPrice)
	}
	return price, nil
}

// Matches reports whether the two orders can trade with each other: opposite
// sides of the same symbol whose prices cross. Matches(a, b) == Matches(b, a).
func (order *Order) Matches(other *Order) bool {
	if other == nil || order.Side == other.Side || order.Symbol != other.Symbol {
		return false
	}
	if !matchRule(order.Kind, other.Kind) {
		return false
	}

	buy, sell := order, other
	if order.Side == Sell {
		buy, sell = other, order
	}
	return buy.Price.GreaterThanOrEqual(sell.Price)
}

// ReduceQuantity takes amount off the remaining quantity. The order is left
// untouched if amount exceeds what remains.
func (order *Order) ReduceQuantity(amount uint64) error {
	if amount > order.Quantity {
		return &InsufficientQuantityError{
			OrderID:   order.ID,
			Remaining: order.Quantity,
			Requested: amount,
		}
	}
	order.Quantity -= amount
	return nil
}

func (order *Order) Filled() bool {
	return order.Quantity == 0
}

func (order Order) String() string {
	return fmt.Sprintf(
		"[%-4s] ID: %d | Symbol: %s | Qty: %d (Total: %d) | Price: %s | Time: %s",
		order.Side,
		order.ID,
		order.Symbol,
		order.Quantity,
		order.TotalQuantity,
		order.Price.StringFixed(2),
		order.Timestamp.Format(time.RFC3339Nano),
	)
}
