package solana

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrMalformedTransaction is returned when a serialized transaction cannot be parsed.
var ErrMalformedTransaction = errors.New("malformed transaction")

const signatureLen = 64

// SignTransaction signs a base64 wire transaction (legacy or versioned) produced by a
// swap API. The keypair must be one of the required signers of the message.
// Returns the re-encoded transaction and the base58 signature, which is also the
// transaction ID.
func SignTransaction(txBase64 string, kp *Keypair) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", "", fmt.Errorf("%w: base64: %v", ErrMalformedTransaction, err)
	}

	numSigs, n, err := decodeCompactU16(raw)
	if err != nil {
		return "", "", err
	}
	sigStart := n
	msgStart := sigStart + numSigs*signatureLen
	if numSigs == 0 || msgStart > len(raw) {
		return "", "", fmt.Errorf("%w: %d signatures in %d bytes", ErrMalformedTransaction, numSigs, len(raw))
	}
	message := raw[msgStart:]

	signers, err := requiredSigners(message)
	if err != nil {
		return "", "", err
	}
	if len(signers) != numSigs {
		return "", "", fmt.Errorf("%w: header wants %d signers, tx has %d slots", ErrMalformedTransaction, len(signers), numSigs)
	}

	idx := -1
	pub := kp.PublicKey()
	for i, key := range signers {
		if bytes.Equal(key, pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %s is not a required signer", ErrMalformedTransaction, kp.Address())
	}

	sig := kp.Sign(message)
	out := make([]byte, len(raw))
	copy(out, raw)
	copy(out[sigStart+idx*signatureLen:], sig)

	return base64.StdEncoding.EncodeToString(out), base58.Encode(sig), nil
}

// requiredSigners returns the first numRequiredSignatures account keys of a message.
func requiredSigners(message []byte) ([][]byte, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedTransaction)
	}
	off := 0
	if message[0]&0x80 != 0 {
		off = 1 // versioned message prefix
	}
	if len(message) < off+3 {
		return nil, fmt.Errorf("%w: short header", ErrMalformedTransaction)
	}
	numRequired := int(message[off])
	off += 3

	numKeys, n, err := decodeCompactU16(message[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if numRequired > numKeys || off+numKeys*32 > len(message) {
		return nil, fmt.Errorf("%w: %d keys, %d required", ErrMalformedTransaction, numKeys, numRequired)
	}

	signers := make([][]byte, numRequired)
	for i := 0; i < numRequired; i++ {
		signers[i] = message[off+i*32 : off+(i+1)*32]
	}
	return signers, nil
}

// decodeCompactU16 reads Solana's short-vec length prefix.
func decodeCompactU16(b []byte) (int, int, error) {
	var value int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("%w: truncated length prefix", ErrMalformedTransaction)
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: length prefix too long", ErrMalformedTransaction)
}
