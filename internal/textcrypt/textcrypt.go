// Package textcrypt encrypts message text at rest.
//
// Ciphertext layout is nonce||sealed, AES-GCM, encoded as standard base64 so
// it can live in the document's string field. Decryption is deliberately
// forgiving: stored values that predate encryption (or were written with a
// lost key) are returned unchanged so historical data stays readable.
package textcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/chatwire/conversation-service/internal/config"
)

// Cipher performs authenticated symmetric encryption of message text.
// The first key is primary; any additional keys are legacy decryption-only
// keys kept for zero-downtime rotation.
type Cipher struct {
	gcms []cipher.AEAD
}

// New builds a Cipher from a comma-separated secret list (see
// config.DecodeEncryptionSecretsCSV). An empty secret disables encryption:
// Encrypt and Decrypt become pass-throughs.
func New(secrets string) (*Cipher, error) {
	if secrets == "" {
		return &Cipher{}, nil
	}
	keys, err := config.DecodeEncryptionSecretsCSV(secrets)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption secret list: %w", err)
	}
	return NewFromKeys(keys)
}

// NewFromKeys builds a Cipher from raw AES keys, primary first. Callers that
// resolve tenant-specific secrets themselves use this constructor.
func NewFromKeys(keys [][]byte) (*Cipher, error) {
	c := &Cipher{}
	for _, key := range keys {
		gcm, err := newGCM(key)
		if err != nil {
			return nil, err
		}
		c.gcms = append(c.gcms, gcm)
	}
	return c, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm, nil
}

// Enabled reports whether a key is configured.
func (c *Cipher) Enabled() bool { return len(c.gcms) > 0 }

// Encrypt returns the base64-encoded ciphertext of plaintext under the
// primary key. Empty input bypasses encryption. A failure here is fatal for
// the write: text must never be stored unencrypted when encryption was
// expected.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || len(c.gcms) == 0 {
		return plaintext, nil
	}
	gcm := c.gcms[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It never fails the read path:
//
//   - values that do not decode as base64 are legacy plaintext, returned
//     unchanged (debug log);
//   - values that decode but fail authentication under every configured key
//     are legacy or corrupted, returned unchanged (warning log);
//   - anything else unexpected is logged as an error and the original value
//     is preserved.
func (c *Cipher) Decrypt(value string) string {
	if value == "" || len(c.gcms) == 0 {
		return value
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		log.Debug("message text is not encoded ciphertext, returning as-is", "err", err)
		return value
	}
	var lastErr error
	authFailed := false
	for _, gcm := range c.gcms {
		nonceSize := gcm.NonceSize()
		if len(raw) < nonceSize {
			lastErr = fmt.Errorf("ciphertext too short: %d bytes", len(raw))
			continue
		}
		nonce, sealed := raw[:nonceSize], raw[nonceSize:]
		plaintext, openErr := gcm.Open(nil, nonce, sealed, nil)
		if openErr == nil {
			return string(plaintext)
		}
		authFailed = true
		lastErr = openErr
	}
	if authFailed {
		log.Warn("message text failed authentication under all keys, returning stored value", "err", lastErr)
	} else {
		log.Error("unexpected failure decrypting message text, returning stored value", "err", lastErr)
	}
	return value
}
