package jupiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/idhash"
	"solana-trading-assistant/internal/solana"
)

// Swap defaults.
const (
	DefaultSlippageBps              = 100
	DefaultPriorityFeeMicroLamports = 50000
)

// ErrTransactionFailed is returned when a sent transaction fails on chain or is
// not confirmed in time.
var ErrTransactionFailed = errors.New("swap transaction failed")

// SwapRequest is one swap of Amount base units of InputMint into OutputMint.
type SwapRequest struct {
	InputMint                string
	OutputMint               string
	Amount                   uint64
	SlippageBps              int
	PriorityFeeMicroLamports int64
}

// PaperSwapper simulates swaps without touching the network.
type PaperSwapper struct {
	nonce atomic.Uint64
}

// NewPaperSwapper creates a paper swapper.
func NewPaperSwapper() *PaperSwapper {
	return &PaperSwapper{}
}

// Swap returns a deterministic pseudo transaction ID.
func (s *PaperSwapper) Swap(ctx context.Context, req SwapRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Amount == 0 {
		return "", fmt.Errorf("paper swap: zero amount")
	}
	n := s.nonce.Add(1)
	return "paper-" + idhash.ComputePaperTxID(req.InputMint, req.OutputMint, strconv.FormatUint(req.Amount, 10), n), nil
}

// Paper reports that swaps are simulated.
func (s *PaperSwapper) Paper() bool { return true }

// LiveSwapperOptions configures a LiveSwapper.
type LiveSwapperOptions struct {
	Jupiter *Client
	RPC     solana.RPCClient
	// WS is optional; without it confirmation polls getSignatureStatuses.
	WS      solana.WSClient
	Keypair *solana.Keypair
	// ConfirmTimeout of zero returns right after sendTransaction.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         zerolog.Logger
}

// LiveSwapper quotes, builds, signs and sends a Jupiter swap.
type LiveSwapper struct {
	jup            *Client
	rpc            solana.RPCClient
	ws             solana.WSClient
	keypair        *solana.Keypair
	confirmTimeout time.Duration
	pollInterval   time.Duration
	log            zerolog.Logger
}

// NewLiveSwapper creates a LiveSwapper.
func NewLiveSwapper(opts LiveSwapperOptions) (*LiveSwapper, error) {
	if opts.Jupiter == nil || opts.RPC == nil {
		return nil, fmt.Errorf("live swapper: jupiter and rpc clients are required")
	}
	if opts.Keypair == nil {
		return nil, fmt.Errorf("live swapper: %w", solana.ErrInvalidKeypair)
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &LiveSwapper{
		jup:            opts.Jupiter,
		rpc:            opts.RPC,
		ws:             opts.WS,
		keypair:        opts.Keypair,
		confirmTimeout: opts.ConfirmTimeout,
		pollInterval:   opts.PollInterval,
		log:            opts.Logger.With().Str("component", "live_swapper").Logger(),
	}, nil
}

// Paper reports that swaps are real.
func (s *LiveSwapper) Paper() bool { return false }

// Swap executes req and returns the transaction signature.
func (s *LiveSwapper) Swap(ctx context.Context, req SwapRequest) (string, error) {
	if req.SlippageBps == 0 {
		req.SlippageBps = DefaultSlippageBps
	}

	quote, err := s.jup.Quote(ctx, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps)
	if err != nil {
		return "", err
	}

	tx, err := s.jup.SwapTransaction(ctx, quote, s.keypair.Address(), req.PriorityFeeMicroLamports)
	if err != nil {
		return "", err
	}

	signed, signature, err := solana.SignTransaction(tx.SwapTransaction, s.keypair)
	if err != nil {
		return "", fmt.Errorf("sign swap: %w", err)
	}

	// Subscribe before sending so a fast confirmation is not missed.
	var confirmCh <-chan solana.SignatureNotification
	if s.ws != nil && s.confirmTimeout > 0 {
		confirmCh, err = s.ws.SubscribeSignature(ctx, signature)
		if err != nil {
			s.log.Warn().Err(err).Str("signature", signature).Msg("signature subscribe failed, polling instead")
			confirmCh = nil
		}
	}

	txID, err := s.rpc.SendTransaction(ctx, signed, &solana.SendOpts{MaxRetries: 2})
	if err != nil {
		return "", fmt.Errorf("send swap: %w", err)
	}
	if txID != signature {
		s.log.Warn().Str("signature", signature).Str("tx_id", txID).Msg("rpc returned unexpected signature")
	}

	s.log.Info().
		Str("tx_id", txID).
		Str("input", req.InputMint).
		Str("output", req.OutputMint).
		Uint64("amount", req.Amount).
		Str("out_amount", quote.OutAmount).
		Msg("swap sent")

	if s.confirmTimeout <= 0 {
		return txID, nil
	}
	if err := s.confirm(ctx, txID, confirmCh); err != nil {
		return "", err
	}
	return txID, nil
}

func (s *LiveSwapper) confirm(ctx context.Context, txID string, ch <-chan solana.SignatureNotification) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	if ch != nil {
		select {
		case n, ok := <-ch:
			if !ok {
				break
			}
			if n.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, txID, n.Err)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not confirmed within %s", ErrTransactionFailed, txID, s.confirmTimeout)
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.rpc.GetSignatureStatus(ctx, txID)
		if err != nil {
			s.log.Debug().Err(err).Str("tx_id", txID).Msg("signature status poll failed")
		} else if status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, txID, status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not confirmed within %s", ErrTransactionFailed, txID, s.confirmTimeout)
		case <-ticker.C:
		}
	}
}
