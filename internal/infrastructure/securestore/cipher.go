package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "authcore/securestore/v1"

// Cipher seals values with AES-256-GCM under a key derived from the install
// master key. The item key is bound as additional data so ciphertexts cannot
// be swapped between rows.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the sealing key from a hex encoded 32 byte master key.
func NewCipher(masterKeyHex string) (*Cipher, error) {
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Seal(itemKey string, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, c.aead.Seal(nil, nonce, plaintext, []byte(itemKey)), nil
}

func (c *Cipher) Open(itemKey string, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(itemKey))
	if err != nil {
		return nil, fmt.Errorf("open sealed item %q: %w", itemKey, err)
	}
	return plaintext, nil
}
