// Package sigutil signs and verifies canonical proposal payloads with
// secp256k1 keys.
package sigutil

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrIdentityMismatch = errors.New("public key does not belong to signer")
)

// Digest is the hash actually signed for a canonical payload.
func Digest(payload []byte) []byte {
	return crypto.Keccak256(payload)
}

// SignPayload signs payload with key and returns the 65 byte recoverable
// signature together with the compressed public key.
func SignPayload(key *ecdsa.PrivateKey, payload []byte) ([]byte, []byte, error) {
	sig, err := crypto.Sign(Digest(payload), key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	return sig, crypto.CompressPubkey(&key.PublicKey), nil
}

// VerifySignature checks sig over payload against a compressed or
// uncompressed public key.
func VerifySignature(publicKey, payload, sig []byte) error {
	if len(sig) != crypto.SignatureLength && len(sig) != crypto.SignatureLength-1 {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidSignature, len(sig))
	}
	if _, err := parsePublicKey(publicKey); err != nil {
		return err
	}
	if !crypto.VerifySignature(publicKey, Digest(payload), sig[:crypto.SignatureLength-1]) {
		return ErrInvalidSignature
	}
	return nil
}

// IdentityMatchesKey checks that publicKey belongs to identity when the
// identity is an Ethereum style hex address. Other identity formats are
// opaque and always match.
func IdentityMatchesKey(identity string, publicKey []byte) error {
	if !common.IsHexAddress(identity) {
		return nil
	}
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return err
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(identity) {
		return ErrIdentityMismatch
	}
	return nil
}

// Presigned returns a sign function for a signature computed by the signer
// outside this process. The signature is verified against the payload it is
// asked to sign before being handed back.
func Presigned(signature, publicKey []byte) func(ctx context.Context, signer string, payload []byte) ([]byte, []byte, error) {
	return func(ctx context.Context, signer string, payload []byte) ([]byte, []byte, error) {
		if err := VerifySignature(publicKey, payload, signature); err != nil {
			return nil, nil, err
		}
		if err := IdentityMatchesKey(signer, publicKey); err != nil {
			return nil, nil, err
		}
		return signature, publicKey, nil
	}
}

// KeySigner returns a sign function backed by a local private key.
func KeySigner(key *ecdsa.PrivateKey) func(ctx context.Context, signer string, payload []byte) ([]byte, []byte, error) {
	return func(ctx context.Context, signer string, payload []byte) ([]byte, []byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return SignPayload(key, payload)
	}
}

// IdentityOf returns the hex address identity of key.
func IdentityOf(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// DecodeHex decodes a hex string with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

func parsePublicKey(publicKey []byte) (*ecdsa.PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(publicKey) {
	case 33:
		pub, err = crypto.DecompressPubkey(publicKey)
	case 65:
		pub, err = crypto.UnmarshalPubkey(publicKey)
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(publicKey))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}
