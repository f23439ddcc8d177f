package usecase

import (
	"crypto/rand"
	"io"
	"strings"
)

// codeAlphabet avoids ambiguous characters like O/0, I/1 and has 32 symbols,
// so every character carries 5 bits and a 12-character code carries 60.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 12

// generateActivationCode creates a secure, random, human-readable code.
// Format: XXXX-XXXX-XXXX
func generateActivationCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	// 256 is a multiple of 32, so masking the low five bits is unbiased.
	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(r, buffer); err != nil {
		return "", err
	}
	for i := range buffer {
		buffer[i] = codeAlphabet[buffer[i]&0x1f]
	}

	return string(buffer[0:4]) + "-" + string(buffer[4:8]) + "-" + string(buffer[8:12]), nil
}

// NormalizeCode trims and upper-cases a user-typed code so lookups are
// insensitive to case and stray whitespace.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
