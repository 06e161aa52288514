// Package integrity provides the checksums of persisted snapshots and the
// optional signatures of API responses.
package integrity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// ChecksumField is the hash field excluded from its own checksum.
const ChecksumField = "checksum"

// ErrBadSignature is returned when a signature does not recover to the expected signer.
var ErrBadSignature = errors.New("signature verification failed")

// Checksum returns the Keccak256 hash of fields as sorted key=value lines.
// The checksum field itself is ignored, so a stored hash can be verified in place.
func Checksum(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == ChecksumField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
		b.WriteByte('\n')
	}
	return crypto.Keccak256Hash([]byte(b.String())).Hex()
}

// Verify reports whether fields carry a checksum matching their content.
func Verify(fields map[string]string) bool {
	sum, ok := fields[ChecksumField]
	return ok && sum == Checksum(fields)
}

// Signature is an Ethereum-style signature over a payload.
type Signature struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
}

// Signer signs payloads with a secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewSigner creates a Signer from a hex encoded private key (with or without 0x).
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	s := &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
	logrus.WithField("signer", s.address).Info("Response signing enabled")
	return s, nil
}

// Address returns the Ethereum address of the signing key.
func (s *Signer) Address() string {
	return s.address
}

// Sign hashes payload with Keccak256 and signs the hash.
func (s *Signer) Sign(payload []byte) (Signature, error) {
	hash := crypto.Keccak256Hash(payload)
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign payload: %w", err)
	}
	return Signature{
		Hash:      hash.Hex(),
		Signature: fmt.Sprintf("0x%x", sig),
		Signer:    s.address,
	}, nil
}

// VerifySignature checks that sigHex over payload was produced by signer.
func VerifySignature(payload []byte, sigHex, signer string) error {
	sig, err := decodeHex(sigHex)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), signer) {
		return ErrBadSignature
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
