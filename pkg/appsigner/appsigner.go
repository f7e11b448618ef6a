// Package appsigner holds the application's co-signing identity. The
// private key never leaves this package; every other component works with
// the address and opaque 65-byte signatures.
package appsigner

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
)

var (
	ErrInvalidKey       = errors.New("invalid signer key")
	ErrInvalidSignature = errors.New("invalid signature encoding")
)

// SignatureLength is the canonical [R || S || V] encoding, V in {27, 28}.
const SignatureLength = 65

type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func New(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// FromHex loads a signer from a hex-encoded private key, with or without a
// 0x prefix.
func FromHex(hexKey string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, ErrInvalidKey
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return New(key)
}

func (s *Signer) Address() common.Address { return s.address }

// SignDigest produces the app co-signature over a 32-byte typed-data digest.
// Signing is deterministic: the same digest always yields the same bytes.
func (s *Signer) SignDigest(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	// crypto.Sign emits V as 0/1; wallets and the contract expect 27/28.
	if sig[SignatureLength-1] < 27 {
		sig[SignatureLength-1] += 27
	}
	return sig, nil
}

// SignPayload hashes the typed data and signs the digest in one step.
func (s *Signer) SignPayload(td apitypes.TypedData) ([]byte, common.Hash, error) {
	digest, err := typedpayload.Digest(td)
	if err != nil {
		return nil, common.Hash{}, err
	}
	sig, err := s.SignDigest(digest)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return sig, digest, nil
}

// Recover returns the address that signed digest. Accepts V as 0/1 or 27/28.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[SignatureLength-1] >= 27 {
		normalized[SignatureLength-1] -= 27
	}
	if normalized[SignatureLength-1] > 1 {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig over digest was produced by expected. The
// address comparison is constant-time; this sits on the authorization
// boundary.
func Verify(digest common.Hash, sig []byte, expected common.Address) bool {
	recovered, err := Recover(digest, sig)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(recovered.Bytes(), expected.Bytes()) == 1
}
