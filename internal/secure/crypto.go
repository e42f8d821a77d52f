package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Crypter encrypts stored session snapshots with AES-256-GCM
type Crypter struct {
	aead cipher.AEAD
}

// NewCrypter creates crypter, only the first 32 bytes of key are used
func NewCrypter(key string) (*Crypter, error) {
	k := []byte(key)
	if l := len(k); l < 32 {
		return nil, fmt.Errorf("key length must be >= 32 bytes, got %d", l)
	}
	block, err := aes.NewCipher(k[:32])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Crypter{aead: aead}, nil
}

// Encrypt returns nonce followed by the sealed data
func (c *Crypter) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(data)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

// Decrypt accepts the output of Encrypt
func (c *Crypter) Decrypt(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
