// Package token generates unguessable share tokens. A token is the sole
// capability granting anonymous read access to a shared portfolio, so it
// must come from a cryptographic source.
package token

import (
	"crypto/rand"
	"fmt"
)

// Length is the number of characters in a share token. 21 characters over
// a 64-symbol alphabet carry ~126 bits of entropy, which makes collisions
// and guessing attacks negligible. The database still enforces uniqueness.
const Length = 21

// alphabet is the URL-safe symbol set (no escaping needed in paths).
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// New returns a new random share token of Length characters.
func New() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		// 64-symbol alphabet: masking the low 6 bits keeps the
		// distribution uniform.
		buf[i] = alphabet[b&0x3f]
	}
	return string(buf), nil
}
