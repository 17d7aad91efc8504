// Package e2ee implements the key exchange and cipher used by clients.
// The relay never calls Decrypt on chat traffic; this package exists so
// Go clients and the test suite agree with the browser implementation.
package e2ee

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

var hkdfInfo = []byte("chat_app_key_exchange")

type KeyPair struct {
	private *ecdh.PrivateKey
}

func NewKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P384().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv}, nil
}

// PublicKeyBytes returns the uncompressed SEC1 point for transmission
// to the peer.
func (kp *KeyPair) PublicKeyBytes() []byte {
	return kp.private.PublicKey().Bytes()
}

// SharedKey derives the symmetric room key from our private key and the
// peer's public point. Both sides arrive at the same 32-byte key.
func (kp *KeyPair) SharedKey(peerPublic []byte) ([]byte, error) {
	pub, err := ecdh.P384().NewPublicKey(peerPublic)
	if err != nil {
		return nil, err
	}

	secret, err := kp.private.ECDH(pub)
	if err != nil {
		return nil, err
	}

	key := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM. The returned ciphertext has
// the 16-byte tag appended; the nonce is returned separately.
func Encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, errors.New("key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt or by a compatible
// client. It fails if the tag does not verify.
func Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.New("key must be 32 bytes")
	}
	if len(nonce) != NonceSize {
		return nil, errors.New("nonce must be 12 bytes")
	}
	if len(ciphertext) < TagSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, nonce, ciphertext, nil)
}
