package broker

import "time"

// OrderStatus is the broker-side state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderWorking   OrderStatus = "WORKING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
	Stop   OrderType = "STOP"
)

// OrderAction is the side of an order.
type OrderAction string

const (
	Buy  OrderAction = "BUY"
	Sell OrderAction = "SELL"
)

// Order is one broker order. ID is assigned on submission.
type Order struct {
	ID           string
	Symbol       string
	Action       OrderAction
	Qty          int
	Type         OrderType
	Price        float64 // limit price, 0 for market
	StopPrice    float64 // trigger price for stop orders
	Status       OrderStatus
	FilledQty    int
	AvgFillPrice float64
	CreatedAt    time.Time
	SignalID     string
}

// Position is the net position in one symbol. Qty is positive for long,
// negative for short.
type Position struct {
	Symbol        string
	Qty           int
	AvgPrice      float64
	UnrealizedPnL float64
	RealizedPnL   float64
}

// AccountInfo is a snapshot of the trading account.
type AccountInfo struct {
	AccountID string
	Balance   float64
	Equity    float64
	OpenPnL   float64
}
