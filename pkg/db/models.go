package db

import "time"

// Order lifecycle statuses.
const (
	StatusRejected = "REJECTED"
	StatusOnHold   = "ON_HOLD"
	StatusApproved = "APPROVED"
)

// Order actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Order types.
const (
	TypeMarket    = "MARKET"
	TypeLimit     = "LIMIT"
	TypeStop      = "STOP"
	TypeStopLimit = "STOP_LIMIT"
)

// Instrument classes.
const (
	ListingForex = "FOREX"
	ListingStock = "STOCK"
)

// Option types.
const (
	OptionCall = "CALL"
	OptionPut  = "PUT"
)

// DateLayout is the storage format for calendar dates (bet dates, expiries).
const DateLayout = "2006-01-02"

// Order represents an admitted or rejected trading order.
type Order struct {
	ID                string
	UserID            string
	Email             string
	ListingType       string // FOREX or STOCK
	Symbol            string
	Action            string // BUY or SELL
	OrderType         string // MARKET, LIMIT, STOP, STOP_LIMIT
	LimitValue        float64
	StopValue         float64
	Quantity          int
	RemainingQuantity int
	AllOrNone         bool
	ExpectedPrice     float64
	Status            string // REJECTED, ON_HOLD, APPROVED
	Done              bool
	LastModified      time.Time
	CreatedAt         time.Time
}

// OptionBet is a wager on a dated option, settled on its bet date.
type OptionBet struct {
	ID        string
	UserID    string
	Email     string
	Code      string
	Date      string // ISO date (DateLayout)
	Amount    float64
	OptionID  string
	SettledAt *time.Time
	CreatedAt time.Time
}

// Option is read-only reference data owned by an external pricing authority.
type Option struct {
	ID             string
	Symbol         string
	OptionType     string // CALL or PUT
	Strike         float64
	ExpirationDate string // ISO date (DateLayout)
	Price          float64
}

// Forex holds the latest quote for a currency pair.
type Forex struct {
	Symbol       string
	FromCurrency string
	ToCurrency   string
	ExchangeRate float64
	AskPrice     float64
	BidPrice     float64
	UpdatedAt    time.Time
}

// Stock holds the latest price for an equity symbol.
type Stock struct {
	Symbol    string
	Price     float64
	UpdatedAt time.Time
}
