package common

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the side an order trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return "Unknown"
}

// OrderKind is the closed set of order variants the engine knows how to match.
type OrderKind int

const (
	// Limit orders are an order to buy or sell a security at a specified
	// price or better. Limit orders may rest on the order book until
	// filled.
	LimitOrder OrderKind = iota
)

func (k OrderKind) String() string {
	switch k {
	case LimitOrder:
		return "Limit"
	}
	return "Unknown"
}

// OrderID is assigned by the engine on creation and never reused.
type OrderID uint64

// PriceRule decides which order's limit price a trade executes at.
type PriceRule int

const (
	// SellPrice always executes at the sell order's limit price.
	SellPrice PriceRule = iota
	// RestingPrice executes at the limit price of whichever order arrived
	// first, i.e. the one that was resting when the other crossed it.
	RestingPrice
)

func (r PriceRule) String() string {
	switch r {
	case SellPrice:
		return "sell"
	case RestingPrice:
		return "resting"
	}
	return "unknown"
}

// ParsePriceRule is the inverse of PriceRule.String.
func ParsePriceRule(s string) (PriceRule, error) {
	switch s {
	case "sell", "":
		return SellPrice, nil
	case "resting":
		return RestingPrice, nil
	}
	return SellPrice, &ValidationError{Field: "price rule", Reason: "unknown rule " + s}
}
