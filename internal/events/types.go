package events

// Event enumerates high-level topics inside the exchange core.
type Event string

const (
	EventForexTick            Event = "price_tick.forex"
	EventStockTick            Event = "price_tick.stock"
	EventOrderAdmitted        Event = "order.admitted"
	EventOrderRejected        Event = "order.rejected"
	EventOrderApproved        Event = "order.approved"
	EventOrderPartiallyFilled Event = "order.partially_filled"
	EventOrderFilled          Event = "order.filled"
	EventBetPlaced            Event = "bet.placed"
	EventBetSettled           Event = "bet.settled"
)

// Tick is the payload published on the price tick topics.
type Tick struct {
	ListingType string  `json:"listing_type"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Ask         float64 `json:"ask,omitempty"`
	Bid         float64 `json:"bid,omitempty"`
}

// Fill is the payload published when an execution tick fills.
type Fill struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Quantity  int     `json:"quantity"`
	Remaining int     `json:"remaining"`
	Notional  float64 `json:"notional"`
}
