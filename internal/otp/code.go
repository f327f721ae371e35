// Package otp generates one-time verification codes and the digests that are
// persisted in their place.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

const (
	MinDigits = 6
	MaxDigits = 9
)

// NewCode returns a decimal code with exactly digits digits and no leading
// zero, drawn uniformly from [10^(digits-1), 10^digits).
func NewCode(digits int) (string, error) {
	if digits < MinDigits || digits > MaxDigits {
		return "", errors.New("invalid otp digits")
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+low, 10), nil
}

// Digest returns the hex SHA-256 of the trimmed code.
func Digest(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether code hashes to digest. The comparison runs in
// constant time with respect to the digest contents.
func Matches(code, digest string) bool {
	if digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Digest(code)), []byte(digest)) == 1
}
