package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a trade_id using SHA256.
// Formula: SHA256(signal_id|token|action|status|tx_id|created_at_ms|nonce)
// The nonce is a per-process sequence so that two records in the same
// millisecond never collide. Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	signalID string,
	token string,
	action string,
	status string,
	txID string,
	createdAtMs int64,
	nonce uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
		signalID,
		token,
		action,
		status,
		txID,
		createdAtMs,
		nonce,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
