package service

import (
	"encoding/hex"
	"errors"
)

const (
	// AES-GCM as performed by clients: 12-byte nonce, 16-byte tag
	// appended to the ciphertext. The relay only checks lengths; the
	// bytes themselves stay opaque.
	nonceBytes = 12
	tagBytes   = 16

	maxRoomIdLength = 256

	// Generous ceiling on a single ciphertext; the hub read limit caps
	// the frame size before this is ever reached.
	maxCiphertextBytes = 16 * 1024
)

func ValidateRoomId(roomId string) error {
	if roomId == "" {
		return errors.New("room_id is required")
	}
	if len(roomId) > maxRoomIdLength {
		return errors.New("room_id too long")
	}
	return nil
}

func ValidateSecret(secret string) error {
	if secret == "" {
		return errors.New("user_secret is required")
	}
	return nil
}

// ValidateNonceHex decodes and length-checks a hex nonce.
func ValidateNonceHex(nonceHex string) error {
	decoded, err := hex.DecodeString(nonceHex)
	if err != nil {
		return errors.New("invalid nonce encoding")
	}
	if len(decoded) != nonceBytes {
		return errors.New("invalid nonce length")
	}
	return nil
}

// ValidateCiphertextHex decodes and length-checks hex ciphertext. The
// minimum is the bare authentication tag (empty plaintext).
func ValidateCiphertextHex(ciphertextHex string) error {
	decoded, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return errors.New("invalid ciphertext encoding")
	}
	if len(decoded) < tagBytes {
		return errors.New("ciphertext shorter than authentication tag")
	}
	if len(decoded) > maxCiphertextBytes {
		return errors.New("ciphertext too large")
	}
	return nil
}
