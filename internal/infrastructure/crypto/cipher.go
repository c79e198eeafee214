package crypto

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CanaryPlaintext is encrypted at store creation and checked on open.
const CanaryPlaintext = "pseudo-core:canary:v1"

// emptySentinel stands in for the empty string so every sealed value has a
// non-empty body.
const emptySentinel = "\x00pseudo-core:empty"

var (
	// ErrDecryptionFailed is returned for tampered ciphertext or a wrong key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrCipherClosed is returned after Destroy.
	ErrCipherClosed = errors.New("cipher destroyed")
)

var encoding = base64.RawURLEncoding

// Cipher is a deterministic authenticated cipher. The nonce is an HMAC of the
// plaintext, so equal plaintexts seal to equal ciphertexts under one key and
// equality queries can run on ciphertext. Opening verifies both the AEAD tag
// and the synthetic nonce.
//
// Both subkeys live in key holders. The AEAD is rebuilt from the locked
// encryption key for each call and never outlives it.
//
// A Cipher is safe for concurrent use.
type Cipher struct {
	mu     sync.RWMutex
	encKey keyHolder
	macKey keyHolder
}

// NewCipher builds a cipher from a KeySize master key. The master key slice is
// wiped before NewCipher returns.
func NewCipher(masterKey []byte) (*Cipher, error) {
	defer memguard.WipeBytes(masterKey)
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(masterKey))
	}

	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("pseudo-core/v1"))
	encKey := make([]byte, chacha20poly1305.KeySize)
	macKey := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, encKey); err != nil {
		return nil, fmt.Errorf("expanding encryption key: %w", err)
	}
	if _, err := io.ReadFull(kdf, macKey); err != nil {
		memguard.WipeBytes(encKey)
		return nil, fmt.Errorf("expanding mac key: %w", err)
	}

	encHolder, err := newKeyHolder(encKey)
	if err != nil {
		memguard.WipeBytes(macKey)
		return nil, err
	}
	macHolder, err := newKeyHolder(macKey)
	if err != nil {
		encHolder.Destroy()
		return nil, err
	}
	return &Cipher{encKey: encHolder, macKey: macHolder}, nil
}

// aead builds the XChaCha20-Poly1305 instance for one call. Callers hold mu.
func (c *Cipher) aead() (cipher.AEAD, error) {
	aead, err := chacha20poly1305.NewX(c.encKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating aead: %w", err)
	}
	return aead, nil
}

// NewCipherFromPassphrase derives the master key and builds a cipher.
func NewCipherFromPassphrase(passphrase string, salt []byte, iterations int) (*Cipher, error) {
	key, err := DeriveKey(passphrase, salt, iterations)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt seals plaintext and returns its base64url wire form.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.macKey == nil {
		return "", ErrCipherClosed
	}

	p := []byte(plaintext)
	if len(p) == 0 {
		p = []byte(emptySentinel)
	}
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := c.syntheticNonce(p)

	out := make([]byte, 0, len(nonce)+len(p)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, p, nil)
	return encoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt under the same key.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.macKey == nil {
		return "", ErrCipherClosed
	}

	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	ns := aead.NonceSize()
	if len(raw) < ns+aead.Overhead() {
		return "", ErrDecryptionFailed
	}

	nonce, sealed := raw[:ns], raw[ns:]
	p, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if !hmac.Equal(nonce, c.syntheticNonce(p)) {
		return "", ErrDecryptionFailed
	}

	if string(p) == emptySentinel {
		return "", nil
	}
	return string(p), nil
}

// VerifyCanary reports ErrDecryptionFailed unless ciphertext is the canary
// sealed under this cipher's key.
func (c *Cipher) VerifyCanary(ciphertext string) error {
	p, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if p != CanaryPlaintext {
		return ErrDecryptionFailed
	}
	return nil
}

// Destroy wipes the key material. Further calls fail with ErrCipherClosed.
func (c *Cipher) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.macKey != nil {
		c.macKey.Destroy()
		c.macKey = nil
	}
	if c.encKey != nil {
		c.encKey.Destroy()
		c.encKey = nil
	}
}

func (c *Cipher) syntheticNonce(p []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey.Bytes())
	mac.Write(p)
	return mac.Sum(nil)[:chacha20poly1305.NonceSizeX]
}
