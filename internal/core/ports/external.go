package ports

import "context"

// LedgerTrigger is the external payment-release mechanism invoked when a
// delivery reaches confirmed. Implementations must be idempotent by delivery
// id; failures are returned to the caller for retry, never swallowed.
type LedgerTrigger interface {
	OnDeliveryConfirmed(ctx context.Context, entry LedgerEntry) error
}

// LedgerEntry identifies one payment release.
type LedgerEntry struct {
	DeliveryID string
	Amount     float64
	Currency   string
	PayerID    string
	PayeeID    string
}

// Notifier delivers user-facing notifications. Fire-and-forget from the
// core's perspective: implementations must not block state transitions.
type Notifier interface {
	Notify(userID, eventType string, payload map[string]any)
}

// Identity answers authorization questions about an already-authenticated
// principal. Consulted as a guard before every state-mutating operation.
type Identity interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
	IsAssignedCarrier(ctx context.Context, userID, deliveryID string) (bool, error)
}
