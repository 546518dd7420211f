package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// GenerateCode returns a 4-digit verification code drawn uniformly from
// 1000-9999. The code is shown to the client at payment time; the provider
// must obtain it out-of-band to confirm service completion.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand failing means the platform has bigger problems; a
		// fixed code would be worse than refusing, so panic.
		panic(fmt.Sprintf("verification code generation failed: %v", err))
	}
	return fmt.Sprintf("%d", n.Int64()+1000)
}

// ValidCodeFormat reports whether code is exactly four digits.
func ValidCodeFormat(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CodesMatch compares an input code against the stored one, trimming
// surrounding whitespace first.
func CodesMatch(input, stored string) bool {
	return strings.TrimSpace(input) == strings.TrimSpace(stored)
}
