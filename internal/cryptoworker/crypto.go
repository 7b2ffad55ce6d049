package cryptoworker

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// syncKeyInfo is the HKDF info string binding a derived key to this
// protocol version, resolving the Open Question in spec §9 (SPEC_FULL §12.2):
// HKDF-SHA256(ikm=syncKey, salt=nil, info="askesis-sync-v1") -> 32 bytes,
// used directly as a ChaCha20-Poly1305 key.
const syncKeyInfo = "askesis-sync-v1"

// DeriveKey turns the user's opaque sync key into the 32-byte symmetric key
// CryptoWorker uses for authenticated encryption.
func DeriveKey(syncKey string) ([32]byte, error) {
	var key [32]byte
	kdf := hkdf.New(sha256.New, []byte(syncKey), nil, []byte(syncKeyInfo))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, fmt.Errorf("cryptoworker: key derivation: %w", err)
	}
	return key, nil
}

// EncryptPayload is the request shape for TaskEncrypt.
type EncryptPayload struct {
	Key       [32]byte
	Plaintext []byte
}

// DecryptPayload is the request shape for TaskDecrypt.
type DecryptPayload struct {
	Key        [32]byte
	Ciphertext []byte
}

func encrypt(p EncryptPayload) ([]byte, error) {
	aead, err := chacha20poly1305.New(p.Key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoworker: cipher init: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptoworker: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, p.Plaintext, nil), nil
}

func decrypt(p DecryptPayload) ([]byte, error) {
	aead, err := chacha20poly1305.New(p.Key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoworker: cipher init: %w", err)
	}
	if len(p.Ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("cryptoworker: ciphertext too short")
	}
	nonce, sealed := p.Ciphertext[:aead.NonceSize()], p.Ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoworker: authenticated decryption failed: %w", err)
	}
	return plain, nil
}
