package referral

import (
	"crypto/rand"
	"fmt"
)

const (
	codeLength      = 8
	maxCodeAttempts = 5
	// No 0/O/1/I/L: codes get typed from screenshots.
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

func generateCode() (string, error) {
	buf := make([]byte, codeLength)

	_, err := rand.Read(buf)
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
