package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderView is a read-only copy of a resting order taken for display.
type OrderView struct {
	ID        OrderID
	Side      Side
	Quantity  uint64
	Price     decimal.Decimal
	Timestamp time.Time
}

func ViewOf(order *Order) OrderView {
	return OrderView{
		ID:        order.ID,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     order.Price,
		Timestamp: order.Timestamp,
	}
}

// BookView is a point-in-time snapshot of one symbol's book. Both sides are
// ordered best to worst.
type BookView struct {
	Symbol string
	Bids   []OrderView
	Asks   []OrderView
}

func (v BookView) Empty() bool {
	return len(v.Bids) == 0 && len(v.Asks) == 0
}

func (v BookView) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Order Book (Symbol: %s)\n-------------------\nBuy Orders:\n", v.Symbol)
	for _, o := range v.Bids {
		writeView(&sb, o)
	}
	sb.WriteString("\nSell Orders:\n")
	for _, o := range v.Asks {
		writeView(&sb, o)
	}
	sb.WriteString("-------------------\n")
	return sb.String()
}

func writeView(sb *strings.Builder, o OrderView) {
	fmt.Fprintf(sb, "[%-4s] ID: %d | Qty: %d | Price: %s | Time: %s\n",
		o.Side, o.ID, o.Quantity, o.Price.StringFixed(2), o.Timestamp.Format(time.RFC3339Nano))
}
