package service

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/zlnvch/cipherchat/models"
)

const tripcodeLength = 44

// Tripcode derives the stable pseudonymous identifier for a secret:
// base58(sha256(secret)) truncated to 44 characters. It is a pure
// function of its input, so the same secret yields the same tripcode
// across sessions and process restarts. The tripcode is the only
// authorization key; the secret is discarded after derivation.
func Tripcode(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	tripcode := base58.Encode(sum[:])
	if len(tripcode) > tripcodeLength {
		tripcode = tripcode[:tripcodeLength]
	}
	return tripcode
}

var mnemonicStarts = []string{
	"ka", "shi", "su", "se", "so", "ta", "chi", "tsu",
	"te", "to", "na", "ni", "nu", "ne", "no",
}

var mnemonicEnds = []string{
	"a", "i", "u", "e", "o", "ya", "yu", "yo", "wa",
	"wo", "ra", "ri", "ru", "re", "ro",
}

// Mnemonic derives the human-readable label shown in room events. Two
// syllables selected from the first tripcode characters, 15 onsets by 15
// codas, so at most 225 distinct labels exist. Collision-prone on
// purpose: a mnemonic identifies nobody and must never gate anything.
func Mnemonic(tripcode string) string {
	prefix := tripcode
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}

	parts := make([]string, 0, len(prefix))
	for _, c := range []byte(prefix) {
		n := int(c) % len(mnemonicStarts)
		parts = append(parts, mnemonicStarts[n%len(mnemonicStarts)]+mnemonicEnds[n%len(mnemonicEnds)])
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "")
}

// NewIdentity derives the full identity for a secret. Held only for the
// duration of room membership, never persisted.
func NewIdentity(secret string) models.Identity {
	tripcode := Tripcode(secret)
	return models.Identity{
		Tripcode: tripcode,
		Mnemonic: Mnemonic(tripcode),
	}
}
