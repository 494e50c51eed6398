package cryptocodec

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncodingKey = "jWmYm7qr5nMoAUwZRjGtBxmz3KA1tkAj3ykkR6q2B2C" // 43 chars

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New("test-token", testEncodingKey, "recipient-123")
	require.NoError(t, err)
	return c
}

func TestNew_BadKeyLength(t *testing.T) {
	_, err := New("tok", "too-short", "recipient")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadKeyLength)
}

// L1: decrypt(encrypt(m)) == m for any UTF-8 m of length 0..10000.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	for _, n := range []int{0, 1, 15, 16, 31, 32, 33, 1000, 10000} {
		msg := strings.Repeat("a", n)
		ct, err := c.Encrypt(msg)
		require.NoError(t, err)
		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, msg, pt, "n=%d", n)
	}
}

func TestDecrypt_WrongRecipient(t *testing.T) {
	c := newTestCodec(t)
	other, err := New("test-token", testEncodingKey, "someone-else")
	require.NoError(t, err)

	ct, err := other.Encrypt("hello")
	require.NoError(t, err)

	_, err = c.Decrypt(ct)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestDecrypt_BadPadding(t *testing.T) {
	c := newTestCodec(t)
	ct, err := c.Encrypt("hello world")
	require.NoError(t, err)

	// Corrupt the base64 payload by decoding, flipping the last byte (which
	// is part of the final ciphertext block, which decrypts to arbitrary
	// garbage), and re-encoding. This is not guaranteed to always produce
	// invalid padding for every key, so we at least assert Decrypt never
	// panics and returns a CodeCrypto error whenever it does fail.
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	corrupted := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(corrupted)
	if err != nil {
		var domainErr interface{ Unwrap() error }
		require.ErrorAs(t, err, &domainErr)
	}
}

// L2: verify(signature(t,n,c), t, n, c) == true; any single-bit flip in
// c, t, or n yields false.
func TestSignatureVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	sig := c.Signature("1700000000", "nonce-abc", "ciphertext-xyz")
	assert.True(t, c.Verify(sig, "1700000000", "nonce-abc", "ciphertext-xyz"))

	assert.False(t, c.Verify(sig, "1700000001", "nonce-abc", "ciphertext-xyz"))
	assert.False(t, c.Verify(sig, "1700000000", "nonce-abX", "ciphertext-xyz"))
	assert.False(t, c.Verify(sig, "1700000000", "nonce-abc", "ciphertext-xyZ"))
	assert.False(t, c.Verify("deadbeef", "1700000000", "nonce-abc", "ciphertext-xyz"))
}

func TestVerify_LengthMismatchIsFalseNotPanic(t *testing.T) {
	c := newTestCodec(t)
	assert.False(t, c.Verify("short", "1700000000", "nonce", "ct"))
	assert.False(t, c.Verify("", "1700000000", "nonce", "ct"))
}

func TestStripPKCS7_RejectsOutOfRangePad(t *testing.T) {
	_, err := stripPKCS7([]byte{1, 2, 3, 0}, 32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadPadding))

	_, err = stripPKCS7(nil, 32)
	require.Error(t, err)
}
