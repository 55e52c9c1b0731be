package broker

import "context"

// Adapter is the outward-facing broker contract. Implementations own the
// wire protocol; callers see only these primitives. Everything richer, such
// as bracket execution, is derived from them in Executor.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error

	GetAccountInfo(ctx context.Context) (AccountInfo, error)
	GetPositions(ctx context.Context) ([]Position, error)

	SubmitOrder(ctx context.Context, order Order) (Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	ModifyOrder(ctx context.Context, orderID string, price, stopPrice float64) error
	GetOrderStatus(ctx context.Context, orderID string) (Order, error)
	GetOpenOrders(ctx context.Context) ([]Order, error)
}
