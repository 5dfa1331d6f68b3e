package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ErrInvalidKeypair is returned when a private key cannot be decoded.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an ed25519 signing key with its base58 public address.
type Keypair struct {
	private ed25519.PrivateKey
	address string
}

// ParseKeypair decodes a 64-byte secret key (seed || public key) given either as
// base58 or as a JSON byte array like the Solana CLI keypair file.
func ParseKeypair(secret string) (*Keypair, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidKeypair)
	}

	var raw []byte
	if strings.HasPrefix(secret, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
			}
			raw[i] = byte(v)
		}
	} else {
		b, err := base58.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
		}
		raw = b
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidKeypair, len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}

	return &Keypair{
		private: priv,
		address: base58.Encode(priv[ed25519.SeedSize:]),
	}, nil
}

// NewKeypairFromSeed builds a keypair from a 32-byte seed.
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed length %d", ErrInvalidKeypair, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{private: priv, address: base58.Encode(priv[ed25519.SeedSize:])}, nil
}

// Address returns the base58 public key.
func (k *Keypair) Address() string { return k.address }

// PublicKey returns the raw 32-byte public key.
func (k *Keypair) PublicKey() []byte {
	return []byte(k.private[ed25519.SeedSize:])
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// String never prints the secret.
func (k *Keypair) String() string { return "Keypair(" + k.address + ")" }
