package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known addresses.
const (
	SOLMint                = "So11111111111111111111111111111111111111112"
	USDCMint               = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	TokenProgramID         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// ErrInvalidAddress is returned for strings that are not base58 32-byte public keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// DecodeAddress decodes a base58 public key.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" || len(addr) > 44 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	b, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(b))
	}
	return b, nil
}

// ValidateAddress reports whether addr is a well-formed public key (mint, pool or wallet).
func ValidateAddress(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// ValidateWalletAddress additionally requires the key to lie on the ed25519 curve,
// which rejects program-derived addresses that can never sign.
func ValidateWalletAddress(addr string) error {
	b, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if !IsOnCurve(b) {
		return fmt.Errorf("%w: %s is off curve", ErrInvalidAddress, addr)
	}
	return nil
}

// IsOnCurve reports whether a 32-byte key is a valid ed25519 point.
func IsOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// FindProgramAddress derives a program-derived address and its bump seed.
// Seeds are tried with bump 255 downwards until the hash falls off the curve.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, byte, error) {
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !IsOnCurve(hash[:]) {
			return base58.Encode(hash[:]), byte(bump), nil
		}
	}
	return "", 0, fmt.Errorf("no viable bump seed")
}

// AssociatedTokenAddress returns the associated token account of owner for mint.
func AssociatedTokenAddress(owner, mint string) (string, error) {
	ownerBytes, err := DecodeAddress(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	mintBytes, err := DecodeAddress(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	tokenProgram, _ := base58.Decode(TokenProgramID)
	ataProgram, _ := base58.Decode(AssociatedTokenProgram)

	addr, _, err := FindProgramAddress([][]byte{ownerBytes, tokenProgram, mintBytes}, ataProgram)
	return addr, err
}
