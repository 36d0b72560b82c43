// Package crypto contains the password-based payload cipher
package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	StartMarker = "STEGO_ENC_START"
	EndMarker   = "STEGO_ENC_END"

	KeySize = chacha20poly1305.KeySize

	MaxPasswordLength = 256
)

// Argon2id parameters. The salt is fixed so a password always maps to the
// same key; callers wanting a per-payload salt fold it into the password.
var (
	kdfSalt           = []byte("multicarrier-stego/v1")
	kdfTime    uint32 = 2
	kdfMemory  uint32 = 19 * 1024
	kdfThreads uint8  = 1
)

// ErrDecryptionFailed is returned for any blob that cannot be trusted
var ErrDecryptionFailed = errors.New("decryption failed")

// DeriveKey turns a password into a cipher key
func DeriveKey(password string) []byte {
	return argon2.IDKey([]byte(password), kdfSalt, kdfTime, kdfMemory, kdfThreads, KeySize)
}

// Encrypt seals plaintext with a key derived from password and wraps it as
// StartMarker || uint32 length || nonce || ciphertext || EndMarker.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(DeriveKey(password))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+4+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Inner structure: uint32 length || message
	inner := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(plaintext)), uint32(len(plaintext)))
	inner = append(inner, plaintext...)
	sealed := aead.Seal(nonce, nonce, inner, nil)

	blob := make([]byte, 0, len(StartMarker)+4+len(sealed)+len(EndMarker))
	blob = append(blob, StartMarker...)
	blob = binary.BigEndian.AppendUint32(blob, uint32(len(sealed)))
	blob = append(blob, sealed...)
	blob = append(blob, EndMarker...)
	return blob, nil
}

// Decrypt reverses Encrypt. Every failure, including a wrong password, is
// reported as ErrDecryptionFailed.
func Decrypt(blob []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password required", ErrDecryptionFailed)
	}
	if !bytes.HasPrefix(blob, []byte(StartMarker)) {
		return nil, fmt.Errorf("%w: start marker not found", ErrDecryptionFailed)
	}
	body := blob[len(StartMarker):]
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: missing length", ErrDecryptionFailed)
	}
	sealedLen := int64(binary.BigEndian.Uint32(body[:4]))
	body = body[4:]
	if sealedLen+int64(len(EndMarker)) > int64(len(body)) {
		return nil, fmt.Errorf("%w: ciphertext length %d exceeds blob", ErrDecryptionFailed, sealedLen)
	}
	sealed := body[:sealedLen]
	if !bytes.Equal(body[sealedLen:sealedLen+int64(len(EndMarker))], []byte(EndMarker)) {
		return nil, fmt.Errorf("%w: end marker not found", ErrDecryptionFailed)
	}

	aead, err := chacha20poly1305.NewX(DeriveKey(password))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	inner, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong password or corrupted data", ErrDecryptionFailed)
	}

	if len(inner) < 4 || uint64(binary.BigEndian.Uint32(inner[:4])) != uint64(len(inner)-4) {
		return nil, fmt.Errorf("%w: malformed plaintext", ErrDecryptionFailed)
	}
	plaintext := inner[4:]
	return plaintext, nil
}

// ValidatePassword validates if the password is usable for key derivation
func ValidatePassword(password string) error {
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password length cannot exceed %d characters", MaxPasswordLength)
	}
	return nil
}
