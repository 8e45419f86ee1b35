package sigutil

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	payload := []byte("canonical payload")
	sig, pub, err := SignPayload(key, payload)
	require.NoError(t, err)
	assert.Len(t, sig, crypto.SignatureLength)
	assert.Len(t, pub, 33)

	assert.NoError(t, VerifySignature(pub, payload, sig))
	assert.NoError(t, VerifySignature(crypto.FromECDSAPub(&key.PublicKey), payload, sig))
	assert.ErrorIs(t, VerifySignature(pub, []byte("other payload"), sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(pub, payload, sig[:10]), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature([]byte{1, 2, 3}, payload, sig), ErrInvalidPublicKey)
}

func TestIdentityMatchesKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.CompressPubkey(&key.PublicKey)

	testCases := []struct {
		name     string
		identity string
		wantErr  error
	}{
		{name: "matching address", identity: IdentityOf(key)},
		{name: "other address", identity: IdentityOf(other), wantErr: ErrIdentityMismatch},
		{name: "opaque identity", identity: "alice"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := IdentityMatchesKey(tc.identity, pub)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPresigned(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	payload := []byte("payload")
	sig, pub, err := SignPayload(key, payload)
	require.NoError(t, err)

	fn := Presigned(sig, pub)

	gotSig, gotPub, err := fn(context.Background(), IdentityOf(key), payload)
	require.NoError(t, err)
	assert.Equal(t, sig, gotSig)
	assert.Equal(t, pub, gotPub)

	_, _, err = fn(context.Background(), IdentityOf(key), []byte("tampered"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, _, err = fn(context.Background(), IdentityOf(other), payload)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestDecodeHex(t *testing.T) {
	b, err := DecodeHex("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	b, err = DecodeHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	_, err = DecodeHex("zz")
	assert.Error(t, err)
}
