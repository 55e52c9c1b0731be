package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ict-sweep-bot/internal/market"
	"ict-sweep-bot/internal/risk"
)

// PaperBroker is an in-memory Adapter for paper trading and replays. Market
// orders fill at the last seen price plus slippage; limit and stop orders
// rest until a bar crosses them in ProcessBar. P&L uses the futures
// contract specs, commission is charged per contract per fill.
type PaperBroker struct {
	mu sync.Mutex

	balance       float64
	commission    float64
	slippageTicks int

	orders    map[string]*Order
	positions map[string]*Position
	lastPrice map[string]float64

	connected bool
	logger    zerolog.Logger
}

// NewPaperBroker creates a paper broker with the given starting balance.
func NewPaperBroker(balance, commissionPerContract float64, slippageTicks int, logger zerolog.Logger) *PaperBroker {
	return &PaperBroker{
		balance:       balance,
		commission:    commissionPerContract,
		slippageTicks: slippageTicks,
		orders:        make(map[string]*Order),
		positions:     make(map[string]*Position),
		lastPrice:     make(map[string]float64),
		logger:        logger.With().Str("component", "paper_broker").Logger(),
	}
}

func (p *PaperBroker) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *PaperBroker) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *PaperBroker) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	openPnL := 0.0
	for _, pos := range p.positions {
		openPnL += p.unrealized(pos)
	}
	return AccountInfo{
		AccountID: "paper",
		Balance:   p.balance,
		Equity:    p.balance + openPnL,
		OpenPnL:   openPnL,
	}, nil
}

func (p *PaperBroker) GetPositions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		snap := *pos
		snap.UnrealizedPnL = p.unrealized(pos)
		out = append(out, snap)
	}
	return out, nil
}

func (p *PaperBroker) SubmitOrder(ctx context.Context, order Order) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return Order{}, fmt.Errorf("paper broker not connected")
	}
	if order.Qty <= 0 {
		return Order{}, fmt.Errorf("order qty must be positive, got %d", order.Qty)
	}

	order.ID = uuid.New().String()
	order.Status = OrderWorking
	order.CreatedAt = time.Now().UTC()

	if order.Type == Market {
		mark, ok := p.lastPrice[order.Symbol]
		if !ok {
			return Order{}, fmt.Errorf("no market price for %s", order.Symbol)
		}
		p.fill(&order, p.slip(order.Symbol, order.Action, mark))
	}

	p.orders[order.ID] = &order
	return order, nil
}

func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if order.Status == OrderWorking {
		order.Status = OrderCancelled
	}
	return nil
}

func (p *PaperBroker) ModifyOrder(ctx context.Context, orderID string, price, stopPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if order.Status != OrderWorking {
		return fmt.Errorf("order %s is %s, not working", orderID, order.Status)
	}
	if price > 0 {
		order.Price = price
	}
	if stopPrice > 0 {
		order.StopPrice = stopPrice
	}
	return nil
}

func (p *PaperBroker) GetOrderStatus(ctx context.Context, orderID string) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("unknown order %s", orderID)
	}
	return *order, nil
}

func (p *PaperBroker) GetOpenOrders(ctx context.Context) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Order
	for _, order := range p.orders {
		if order.Status == OrderWorking {
			out = append(out, *order)
		}
	}
	return out, nil
}

// ProcessBar marks the symbol to the bar's close and fills any resting
// order the bar crossed. Limit orders fill at their limit, stop orders at
// their trigger plus slippage.
func (p *PaperBroker) ProcessBar(bar market.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastPrice[bar.Symbol] = bar.Close

	for _, order := range p.orders {
		if order.Status != OrderWorking || order.Symbol != bar.Symbol {
			continue
		}
		switch order.Type {
		case Limit:
			if order.Action == Buy && bar.Low <= order.Price {
				p.fill(order, order.Price)
			} else if order.Action == Sell && bar.High >= order.Price {
				p.fill(order, order.Price)
			}
		case Stop:
			if order.Action == Sell && bar.Low <= order.StopPrice {
				p.fill(order, p.slip(order.Symbol, Sell, order.StopPrice))
			} else if order.Action == Buy && bar.High >= order.StopPrice {
				p.fill(order, p.slip(order.Symbol, Buy, order.StopPrice))
			}
		}
	}
}

// fill executes an order at the given price and nets it into the position.
// Caller holds the lock.
func (p *PaperBroker) fill(order *Order, price float64) {
	order.Status = OrderFilled
	order.FilledQty = order.Qty
	order.AvgFillPrice = price

	signed := order.Qty
	if order.Action == Sell {
		signed = -signed
	}

	pos, ok := p.positions[order.Symbol]
	if !ok {
		pos = &Position{Symbol: order.Symbol}
		p.positions[order.Symbol] = pos
	}

	pointValue := risk.SpecFor(order.Symbol).PointValue()
	switch {
	case pos.Qty == 0 || sameSign(pos.Qty, signed):
		total := pos.AvgPrice*absFloat(pos.Qty) + price*absFloat(signed)
		pos.Qty += signed
		pos.AvgPrice = total / absFloat(pos.Qty)
	default:
		// Reducing or flipping: realize P&L on the closed portion.
		closed := min(abs(pos.Qty), abs(signed))
		direction := 1.0
		if pos.Qty < 0 {
			direction = -1
		}
		realized := direction * (price - pos.AvgPrice) * float64(closed) * pointValue
		pos.RealizedPnL += realized
		p.balance += realized

		pos.Qty += signed
		if pos.Qty == 0 {
			pos.AvgPrice = 0
		} else if sameSign(pos.Qty, signed) {
			pos.AvgPrice = price
		}
	}

	p.balance -= p.commission * float64(order.Qty)

	p.logger.Debug().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("action", string(order.Action)).
		Int("qty", order.Qty).
		Float64("price", price).
		Msg("Order filled")
}

// slip shifts a fill against the taker by the configured tick count.
func (p *PaperBroker) slip(symbol string, action OrderAction, price float64) float64 {
	tick := risk.SpecFor(symbol).TickSize
	if action == Buy {
		return price + float64(p.slippageTicks)*tick
	}
	return price - float64(p.slippageTicks)*tick
}

// unrealized marks a position against the last seen price. Caller holds
// the lock.
func (p *PaperBroker) unrealized(pos *Position) float64 {
	mark, ok := p.lastPrice[pos.Symbol]
	if !ok || pos.Qty == 0 {
		return 0
	}
	return (mark - pos.AvgPrice) * float64(pos.Qty) * risk.SpecFor(pos.Symbol).PointValue()
}

func sameSign(a, b int) bool { return (a > 0) == (b > 0) }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absFloat(n int) float64 { return float64(abs(n)) }
