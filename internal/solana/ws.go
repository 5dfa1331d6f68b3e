package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for a transaction signature to reach the client commitment.
	// The channel receives exactly one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is the result of a signature subscription.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // nil when the transaction succeeded
}
