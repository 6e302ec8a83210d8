package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	. "gungnir/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrBookHalted     = errors.New("order book halted")
	ErrWrongBook      = errors.New("order routed to the wrong book")
	ErrCorruptBook    = errors.New("order book invariant violated")
	ErrDuplicateOrder = errors.New("order id already in book")
)

// OrderBook holds the resting orders of a single symbol, one queue per side.
type OrderBook struct {
	symbol string
	rule   PriceRule
	now    func() time.Time

	// Guards everything below. Admission and its matching pass run under the
	// write lock, snapshots under the read lock.
	mu   sync.RWMutex
	bids *OrderQueue
	asks *OrderQueue
	ids  map[OrderID]struct{} // Resting order ids, both sides.

	// Set on the first internal fault. A halted book rejects all admissions.
	halted error

	// Some book keeping
	nTrades uint64 // Trades executed in this book.
	volume  uint64 // Quantity traded in this book.

	// Taken before mu is released at the end of an admission and held while
	// its trades are reported, so reports leave in execution order.
	reportMu sync.Mutex
}

func NewOrderBook(symbol string, rule PriceRule, now func() time.Time) *OrderBook {
	if now == nil {
		now = time.Now
	}
	return &OrderBook{
		symbol: symbol,
		rule:   rule,
		now:    now,
		bids:   NewOrderQueue(Buy),
		asks:   NewOrderQueue(Sell),
		ids:    make(map[OrderID]struct{}),
	}
}

func (book *OrderBook) Symbol() string { return book.symbol }

// Admit places a new order which can either (fully or partially):
// 1. Execute immediately against the opposite side
// 2. Rest in the book
// Returns the trades the order caused, in execution order.
//
// If the matching pass hits a broken invariant the book is halted and every
// later admission fails with ErrBookHalted.
func (book *OrderBook) Admit(order *Order) ([]Trade, error) {
	defer book.reportMu.Unlock()
	return book.admit(order)
}

// admit is Admit, returning with reportMu held whatever the outcome. The
// caller reports the trades and then releases it.
func (book *OrderBook) admit(order *Order) ([]Trade, error) {
	book.mu.Lock()
	defer book.mu.Unlock()
	defer book.reportMu.Lock()

	if book.halted != nil {
		return nil, fmt.Errorf("%s: %w: %w", book.symbol, ErrBookHalted, book.halted)
	}
	if err := ValidateSubmission(order.Symbol, order.Side, order.Quantity, order.Price); err != nil {
		return nil, fmt.Errorf("order %d: %w", order.ID, err)
	}
	if order.Symbol != book.symbol {
		return nil, fmt.Errorf("%w: %s order sent to %s", ErrWrongBook, order.Symbol, book.symbol)
	}
	if _, ok := book.ids[order.ID]; ok {
		return nil, fmt.Errorf("order %d: %w", order.ID, ErrDuplicateOrder)
	}

	if err := book.side(order.Side).Push(order); err != nil {
		return nil, err
	}
	book.ids[order.ID] = struct{}{}

	trades, err := book.match()
	if err != nil {
		book.halted = err
		log.Error().
			Err(err).
			Str("symbol", book.symbol).
			Uint64("order", uint64(order.ID)).
			Msg("matching fault, halting book")
		return trades, err
	}
	return trades, nil
}

func (book *OrderBook) side(side Side) *OrderQueue {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// match consumes the top of book while it crosses (i.e., bid >= ask). Each
// iteration trades the smaller of the two remaining quantities, so at least one
// side is filled and popped per iteration and the loop always terminates.
//
// NOTE: Only the newest order can create a cross, since the book was uncrossed
// before it arrived. It may still sweep several resting orders.
func (book *OrderBook) match() ([]Trade, error) {
	var trades []Trade
	for {
		bid, bidOk := book.bids.Best()
		ask, askOk := book.asks.Best()

		// If either side is empty, or prices don't cross, we are done.
		if !bidOk || !askOk || !bid.Matches(ask) {
			return trades, nil
		}

		matchQty := min(bid.Quantity, ask.Quantity)
		if matchQty == 0 {
			return trades, fmt.Errorf("%w: filled order resting (bid %d, ask %d)", ErrCorruptBook, bid.ID, ask.ID)
		}

		trade := Trade{
			Sequence:    book.nTrades + 1,
			Symbol:      book.symbol,
			Quantity:    matchQty,
			Price:       book.tradePrice(bid, ask),
			BuyOrderID:  bid.ID,
			SellOrderID: ask.ID,
			BuyOwner:    bid.Owner,
			SellOwner:   ask.Owner,
			Aggressor:   aggressor(bid, ask),
			Timestamp:   book.now(),
		}

		if err := bid.ReduceQuantity(matchQty); err != nil {
			return trades, err
		}
		if err := ask.ReduceQuantity(matchQty); err != nil {
			return trades, err
		}
		trades = append(trades, trade)
		book.nTrades++
		book.volume += matchQty

		log.Debug().
			Str("symbol", trade.Symbol).
			Uint64("quantity", trade.Quantity).
			Stringer("price", trade.Price).
			Uint64("buy", uint64(trade.BuyOrderID)).
			Uint64("sell", uint64(trade.SellOrderID)).
			Msg("trade executed")

		// Filled orders leave the book for good.
		if bid.Filled() {
			book.bids.PopBest()
			delete(book.ids, bid.ID)
		}
		if ask.Filled() {
			book.asks.PopBest()
			delete(book.ids, ask.ID)
		}
	}
}

func (book *OrderBook) tradePrice(bid, ask *Order) decimal.Decimal {
	if book.rule == RestingPrice && bid.ID < ask.ID {
		return bid.Price
	}
	return ask.Price
}

// aggressor is the side of whichever order arrived last.
func aggressor(bid, ask *Order) Side {
	if bid.ID > ask.ID {
		return Buy
	}
	return Sell
}

// Snapshot copies both sides out best to worst. The result shares nothing with
// the live book.
func (book *OrderBook) Snapshot() BookView {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return BookView{
		Symbol: book.symbol,
		Bids:   book.bids.Views(),
		Asks:   book.asks.Views(),
	}
}

func (book *OrderBook) BestBid() (OrderView, bool) {
	return book.best(book.bids)
}

func (book *OrderBook) BestAsk() (OrderView, bool) {
	return book.best(book.asks)
}

func (book *OrderBook) best(queue *OrderQueue) (OrderView, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	order, ok := queue.Best()
	if !ok {
		return OrderView{}, false
	}
	return ViewOf(order), true
}

// Stats summarises the book for monitoring.
type Stats struct {
	Symbol       string
	BuyOrders    int
	SellOrders   int
	BuyQuantity  uint64
	SellQuantity uint64
	Trades       uint64
	Volume       uint64
	Halted       bool
}

func (book *OrderBook) Stats() Stats {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return Stats{
		Symbol:       book.symbol,
		BuyOrders:    book.bids.Len(),
		SellOrders:   book.asks.Len(),
		BuyQuantity:  book.bids.Quantity(),
		SellQuantity: book.asks.Quantity(),
		Trades:       book.nTrades,
		Volume:       book.volume,
		Halted:       book.halted != nil,
	}
}

// Halted returns the fault that stopped the book, if any.
func (book *OrderBook) Halted() error {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.halted
}
