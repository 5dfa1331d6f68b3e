// Package idhash computes deterministic identifiers for signals, trades and alerts.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(token|created_at_ms)
func ComputeSignalID(token string, createdAtMs int64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", token, createdAtMs)))
	return hex.EncodeToString(hash[:])
}

// ComputeAlertID computes a deterministic alert id.
// Formula: SHA256(type|token|created_at_ms)
func ComputeAlertID(alertType, token string, createdAtMs int64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", alertType, token, createdAtMs)))
	return hex.EncodeToString(hash[:])
}

// ComputePaperTxID derives a pseudo transaction id for paper trades.
// Formula: SHA256(input_mint|output_mint|amount|nonce), truncated to 32 hex chars.
func ComputePaperTxID(inputMint, outputMint, amount string, nonce uint64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", inputMint, outputMint, amount, nonce)))
	return hex.EncodeToString(hash[:16])
}
