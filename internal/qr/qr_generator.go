package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

const imageSize = 256

var ErrInvalidPayload = errors.New("invalid QR payload")

type QRGenerator struct {
	secret []byte
}

// NewQRGenerator derives a 32-byte AES key from secret.
func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret))
	return &QRGenerator{secret: hashed[:]}
}

// GeneratePlainQR encodes content, typically a URL, as a PNG QR code.
func (q *QRGenerator) GeneratePlainQR(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, imageSize)
}

// GenerateEncryptedQR encodes payload as JSON, seals it with AES-GCM and
// renders the base64url token as a PNG QR code. The token is returned too.
func (q *QRGenerator) GenerateEncryptedQR(payload interface{}) ([]byte, string, error) {
	token, err := q.Seal(payload)
	if err != nil {
		return nil, "", err
	}
	png, err := qrcode.Encode(token, qrcode.Medium, imageSize)
	if err != nil {
		return nil, "", fmt.Errorf("encode QR: %w", err)
	}
	return png, token, nil
}

func (q *QRGenerator) Seal(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal into out. Tampered or foreign tokens fail with ErrInvalidPayload.
// Decoding is strict so each sealed payload has exactly one valid token.
func (q *QRGenerator) Open(token string, out interface{}) error {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	gcm, err := q.aead()
	if err != nil {
		return err
	}
	if len(raw) < gcm.NonceSize() {
		return ErrInvalidPayload
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return json.Unmarshal(data, out)
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
