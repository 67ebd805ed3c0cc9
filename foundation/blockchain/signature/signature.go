// Package signature provides the hashing and signing primitives used
// throughout the blockchain.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of all zeros. It is the previous hash
// of the genesis block.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashLength is the number of hex characters in a block or transaction hash.
const HashLength = 64

// Hash returns the hex encoded SHA-256 digest of the canonical encoding of
// the value. Values are built from maps so the JSON encoder writes their
// keys in sorted order, which keeps the encoding deterministic across nodes.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Sign signs the specified hex encoded digest with the private key and
// returns the hex encoded signature in the [R|S|V] format.
func Sign(digest string, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := hex.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("decoding digest: %w", err)
	}
	if len(data) != sha256.Size {
		return "", fmt.Errorf("digest must be %d bytes, got %d", sha256.Size, len(data))
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", fmt.Errorf("signing digest: %w", err)
	}

	return hex.EncodeToString(sig), nil
}

// Verify reports whether the hex encoded signature over the digest was
// produced by the holder of the specified public key. Malformed input of
// any kind reports false, it never panics or returns an error.
func Verify(digest string, sigHex string, publicKey []byte) bool {
	data, err := hex.DecodeString(digest)
	if err != nil || len(data) != sha256.Size {
		return false
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) < crypto.RecoveryIDOffset {
		return false
	}

	return crypto.VerifySignature(publicKey, data, sig[:crypto.RecoveryIDOffset])
}

// PublicKeyFromHex parses a hex encoded uncompressed public key and returns
// the raw bytes suitable for Verify.
func PublicKeyFromHex(pub string) ([]byte, error) {
	data, err := hex.DecodeString(pub)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	// UnmarshalPubkey validates the bytes represent a point on the curve.
	if _, err := crypto.UnmarshalPubkey(data); err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	return data, nil
}

// PublicKeyToHex returns the hex encoding of the uncompressed public key.
// This string is the on-chain identity of an account.
func PublicKeyToHex(publicKey *ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(publicKey))
}
