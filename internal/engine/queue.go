package engine

import (
	"fmt"

	. "gungnir/internal/common"

	"github.com/tidwall/btree"
)

// OrderQueue keeps one side of a book in price-time priority. The best order
// is cached so peeking does not walk the tree.
type OrderQueue struct {
	side   Side
	less   func(a, b *Order) bool
	orders *btree.BTreeG[*Order]
	best   *Order
}

// NewOrderQueue builds the queue for side. Bids are sorted greatest price
// first, asks least price first. Equal prices fall back to arrival time, then
// to the order id for clocks too coarse to tell two arrivals apart.
func NewOrderQueue(side Side) *OrderQueue {
	less := priority(side)
	return &OrderQueue{
		side:   side,
		less:   less,
		orders: btree.NewBTreeG(less),
	}
}

func priority(side Side) func(a, b *Order) bool {
	return func(a, b *Order) bool {
		if c := a.Price.Cmp(b.Price); c != 0 {
			if side == Buy {
				return c > 0
			}
			return c < 0
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	}
}

func (q *OrderQueue) Side() Side { return q.side }
func (q *OrderQueue) Len() int   { return q.orders.Len() }

// Push inserts an order. An order equal in priority to one already queued,
// which can only mean the same id, is refused and the queue left as it was.
func (q *OrderQueue) Push(order *Order) error {
	if prev, replaced := q.orders.Set(order); replaced {
		q.orders.Set(prev)
		return fmt.Errorf("order %d: %w", order.ID, ErrDuplicateOrder)
	}
	if q.best == nil || q.less(order, q.best) {
		q.best = order
	}
	return nil
}

// Best returns the top of this side without removing it.
func (q *OrderQueue) Best() (*Order, bool) {
	return q.best, q.best != nil
}

// PopBest removes and returns the top of this side.
func (q *OrderQueue) PopBest() (*Order, bool) {
	order, ok := q.orders.PopMin()
	if !ok {
		return nil, false
	}
	q.best, _ = q.orders.Min()
	return order, true
}

// Each walks the queue best to worst until fn returns false. The queue must
// not be modified from fn.
func (q *OrderQueue) Each(fn func(order *Order) bool) {
	q.orders.Scan(fn)
}

// Views copies the queue out best to worst.
func (q *OrderQueue) Views() []OrderView {
	views := make([]OrderView, 0, q.orders.Len())
	q.Each(func(order *Order) bool {
		views = append(views, ViewOf(order))
		return true
	})
	return views
}

// Quantity is the total resting volume on this side.
func (q *OrderQueue) Quantity() uint64 {
	var total uint64
	q.Each(func(order *Order) bool {
		total += order.Quantity
		return true
	})
	return total
}
