// Package cryptocodec implements the upstream platform's message-callback
// crypto scheme (spec §4.1, §6): SHA-1 request signing and AES-256-CBC
// payload encryption bound to a recipient identifier.
package cryptocodec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// Subcode sentinels. cryptocodec never returns these directly; they are
// always wrapped as the Cause of a *domain.Error with Code CodeCrypto, so
// callers that need to distinguish failure modes use errors.Is against
// these values while everything else (the callback handler, in particular)
// can treat any CodeCrypto error uniformly as "ignore this event".
var (
	ErrBadSignature     = errors.New("cryptocodec: signature mismatch")
	ErrBadKeyLength     = errors.New("cryptocodec: encoding key does not decode to a 32-byte AES key")
	ErrBadPadding       = errors.New("cryptocodec: invalid PKCS#7 padding")
	ErrInvalidRecipient = errors.New("cryptocodec: recipient identifier mismatch")
	ErrShortPayload     = errors.New("cryptocodec: ciphertext too short to contain the expected envelope")
)

const (
	aesKeySize  = 32
	ivSize      = 16
	padBlock    = 32
	lengthField = 4
)

// Codec binds a callback token, AES key/IV pair (derived from the
// encoding key), and an upstream-assigned recipient identifier.
type Codec struct {
	token     string
	key       []byte // 32 bytes
	iv        []byte // 16 bytes, key[:16]
	recipient string
}

// New derives the AES key/IV from encodingKey (a 43-character key as issued
// by the upstream platform) and returns a Codec bound to token and
// recipient. It returns a *domain.Error (CodeCrypto) if encodingKey does
// not decode to exactly 32 bytes.
func New(token, encodingKey, recipient string) (*Codec, error) {
	raw, err := base64.StdEncoding.DecodeString(encodingKey + "=")
	if err != nil || len(raw) != aesKeySize {
		return nil, domain.NewCryptoError(ErrBadKeyLength, "decode encoding key")
	}
	return &Codec{
		token:     token,
		key:       raw,
		iv:        raw[:ivSize],
		recipient: recipient,
	}, nil
}

// Signature computes hex(SHA-1) over the lexicographically sorted
// concatenation of [token, timestamp, nonce, ciphertext], per §4.1.
func (c *Codec) Signature(timestamp, nonce, ciphertext string) string {
	parts := []string{c.token, timestamp, nonce, ciphertext}
	sort.Strings(parts)
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature and compares it against received in
// constant time. Any length mismatch is treated as false, never a panic.
func (c *Codec) Verify(received, timestamp, nonce, ciphertext string) bool {
	want := c.Signature(timestamp, nonce, ciphertext)
	if len(want) != len(received) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(received)) == 1
}

// Decrypt base64-decodes, AES-256-CBC decrypts (no library padding),
// strips PKCS#7 padding at a 32-byte block, and validates the decoded
// envelope: 16-byte random prefix, 4-byte big-endian message length,
// message bytes, trailing recipient identifier (which must equal the
// configured one). Every failure is a *domain.Error with Code CodeCrypto.
func (c *Codec) Decrypt(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", domain.NewCryptoError(err, "base64 decode")
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", domain.NewCryptoError(ErrShortPayload, "ciphertext not a multiple of the AES block size")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", domain.NewCryptoError(err, "construct AES cipher")
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, raw)

	plain, err = stripPKCS7(plain, padBlock)
	if err != nil {
		return "", domain.NewCryptoError(err, "strip padding")
	}

	if len(plain) < ivSize+lengthField {
		return "", domain.NewCryptoError(ErrShortPayload, "envelope shorter than random prefix + length field")
	}
	msgLen := binary.BigEndian.Uint32(plain[ivSize : ivSize+lengthField])
	msgStart := ivSize + lengthField
	msgEnd := msgStart + int(msgLen)
	if msgEnd > len(plain) {
		return "", domain.NewCryptoError(ErrShortPayload, "declared message length exceeds envelope")
	}

	msg := plain[msgStart:msgEnd]
	recipient := string(plain[msgEnd:])
	if recipient != c.recipient {
		return "", domain.NewCryptoError(ErrInvalidRecipient, "got %q", recipient)
	}
	return string(msg), nil
}

// Encrypt is the inverse of Decrypt: it packs [random16 | len4_BE | msg |
// recipient], pads to a 32-byte multiple with PKCS#7, AES-256-CBC encrypts,
// and base64-encodes the result.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	random := make([]byte, ivSize)
	if _, err := readRandom(random); err != nil {
		return "", domain.NewCryptoError(err, "generate random prefix")
	}

	msg := []byte(plaintext)
	var lenBuf [lengthField]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))

	buf := make([]byte, 0, ivSize+lengthField+len(msg)+len(c.recipient)+padBlock)
	buf = append(buf, random...)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, msg...)
	buf = append(buf, []byte(c.recipient)...)
	buf = addPKCS7(buf, padBlock)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", domain.NewCryptoError(err, "construct AES cipher")
	}
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, buf)
	return base64.StdEncoding.EncodeToString(out), nil
}

func stripPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > blockSize || pad > len(data) {
		return nil, ErrBadPadding
	}
	if !bytes.Equal(data[len(data)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return nil, ErrBadPadding
	}
	return data[:len(data)-pad], nil
}

func addPKCS7(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	if pad == 0 {
		pad = blockSize
	}
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

// readRandom is a var so tests can substitute a deterministic source
// without touching crypto/rand globally.
var readRandom = cryptorand.Read
