package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	alphaNum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits   = "0123456789"
)

// codePattern matches the canonical code shape: a hash, four uppercase
// alphanumerics, three digits.
var codePattern = regexp.MustCompile(`^#[A-Z0-9]{4}[0-9]{3}$`)

// ValidFormat reports whether raw is a well-formed invite code.
func ValidFormat(raw string) bool {
	return codePattern.MatchString(raw)
}

// pick draws one character from set with a uniform distribution.
// Reducing a raw byte modulo the set size would skew toward the low
// characters, since 256 is not a multiple of 36.
func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

// GenerateCode returns a random code like #K3QX042. Uniqueness is not
// guaranteed here; callers insert and retry on a duplicate key.
func GenerateCode() (string, error) {
	out := make([]byte, 0, 8)
	out = append(out, '#')
	for i := 0; i < 4; i++ {
		c, err := pick(alphaNum)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for i := 0; i < 3; i++ {
		c, err := pick(digits)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	return string(out), nil
}
