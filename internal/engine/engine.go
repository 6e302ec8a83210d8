package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	. "gungnir/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrUnknownOrderID = errors.New("order id not issued by this engine")

// Reporter receives every trade once its matching pass has finished. Trades of
// one book arrive in execution order; a reporter must not call back into the
// engine.
type Reporter interface {
	ReportTrade(trade Trade) error
}

// This is the main matching engine. It owns one book per symbol and the
// sequencer that numbers every order it accepts.
type Engine struct {
	mu    sync.RWMutex
	books map[string]*OrderBook

	seq      *Sequencer
	rule     PriceRule
	now      func() time.Time
	reporter Reporter
}

type Option func(*Engine)

// WithPriceRule picks the trade price rule for every book.
func WithPriceRule(rule PriceRule) Option {
	return func(e *Engine) { e.rule = rule }
}

// WithClock replaces time.Now for order and trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSymbols creates books up front. Other symbols are still created on
// first use.
func WithSymbols(symbols ...string) Option {
	return func(e *Engine) {
		for _, symbol := range symbols {
			if _, ok := e.books[symbol]; !ok && symbol != "" {
				e.books[symbol] = nil
			}
		}
	}
}

func New(opts ...Option) *Engine {
	engine := &Engine{
		books: make(map[string]*OrderBook),
		rule:  SellPrice,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}

	engine.seq = NewSequencer(0, engine.now)
	for symbol := range engine.books {
		engine.books[symbol] = NewOrderBook(symbol, engine.rule, engine.now)
	}
	return engine
}

func (engine *Engine) SetReporter(reporter Reporter) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.reporter = reporter
}

// SubmitOrder validates a limit order, numbers it and routes it to its book.
// Rejected submissions consume no id and leave every book untouched.
func (engine *Engine) SubmitOrder(
	symbol string,
	side Side,
	quantity uint64,
	price decimal.Decimal,
	owner string,
) (OrderID, []Trade, error) {
	order, err := engine.NewOrder(symbol, side, quantity, price, owner)
	if err != nil {
		return 0, nil, err
	}
	trades, err := engine.Route(order)
	return order.ID, trades, err
}

// NewOrder validates a limit order and numbers it without routing it.
func (engine *Engine) NewOrder(
	symbol string,
	side Side,
	quantity uint64,
	price decimal.Decimal,
	owner string,
) (*Order, error) {
	if err := ValidateSubmission(symbol, side, quantity, price); err != nil {
		return nil, err
	}

	id, ts := engine.seq.Next()
	order, err := NewOrder(id, symbol, side, quantity, price, ts)
	if err != nil {
		return nil, err
	}
	order.Owner = owner
	return order, nil
}

// Route admits an order numbered by this engine into the book for its symbol,
// creating the book if needed, and forwards any trades to the reporter.
func (engine *Engine) Route(order *Order) ([]Trade, error) {
	if order.ID == 0 || order.ID > engine.seq.Current() {
		return nil, fmt.Errorf("order %d: %w", order.ID, ErrUnknownOrderID)
	}

	book := engine.Book(order.Symbol)
	trades, err := book.admit(order)
	defer book.reportMu.Unlock()

	engine.mu.RLock()
	reporter := engine.reporter
	engine.mu.RUnlock()

	if reporter != nil {
		for _, trade := range trades {
			if rerr := reporter.ReportTrade(trade); rerr != nil {
				log.Warn().
					Err(rerr).
					Str("symbol", trade.Symbol).
					Uint64("buy", uint64(trade.BuyOrderID)).
					Uint64("sell", uint64(trade.SellOrderID)).
					Msg("unable to report trade")
			}
		}
	}
	return trades, err
}

// BookView snapshots the book for symbol. Unknown symbols get an empty book.
func (engine *Engine) BookView(symbol string) BookView {
	return engine.Book(symbol).Snapshot()
}

// Book returns the book for symbol, creating it on first reference.
func (engine *Engine) Book(symbol string) *OrderBook {
	engine.mu.RLock()
	book, ok := engine.books[symbol]
	engine.mu.RUnlock()
	if ok {
		return book
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	// Someone may have beaten us to it.
	if book, ok = engine.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol, engine.rule, engine.now)
	engine.books[symbol] = book
	log.Debug().Str("symbol", symbol).Msg("order book created")
	return book
}

// Symbols lists every symbol with a book, sorted.
func (engine *Engine) Symbols() []string {
	engine.mu.RLock()
	defer engine.mu.RUnlock()

	symbols := make([]string, 0, len(engine.books))
	for symbol := range engine.books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// LastOrderID is the id most recently handed out.
func (engine *Engine) LastOrderID() OrderID {
	return engine.seq.Current()
}
