package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used for wallet and swap operations.
type RPCClient interface {
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetLatestBlockhash returns a recent blockhash and its last valid block height.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a signed base64 transaction and returns its signature.
	SendTransaction(ctx context.Context, signedTxBase64 string, opts *SendOpts) (string, error)

	// GetSignatureStatus returns the status of a transaction signature, nil if unknown.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)

	// GetTokenAccountBalance returns the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)
}

// TokenAmount is an SPL token balance in base units.
type TokenAmount struct {
	Amount   string // base units, decimal string
	Decimals uint8
	UIAmount float64
}

// Blockhash is the result of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SendOpts configures sendTransaction.
type SendOpts struct {
	SkipPreflight bool
	MaxRetries    int
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int64
	ConfirmationStatus string // processed, confirmed, finalized
	Err                interface{}
}

// Confirmed reports whether the transaction reached confirmed or finalized commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s != nil && s.Err == nil &&
		(s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}
