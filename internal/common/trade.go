package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade accounts for the two parties who matched.
type Trade struct {
	Sequence    uint64 // Position among the trades of its book, from 1
	Symbol      string
	Quantity    uint64
	Price       decimal.Decimal
	BuyOrderID  OrderID
	SellOrderID OrderID
	BuyOwner    string
	SellOwner   string
	Aggressor   Side // Side of the order that arrived last and crossed the book
	Timestamp   time.Time
}

// Notional is quantity times price.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromUint64(t.Quantity))
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade Executed: %d shares of %s at %s (buy #%d, sell #%d, aggressor %s) at %s",
		t.Quantity,
		t.Symbol,
		t.Price.StringFixed(2),
		t.BuyOrderID,
		t.SellOrderID,
		t.Aggressor,
		t.Timestamp.Format(time.RFC3339Nano),
	)
}
