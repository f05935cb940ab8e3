// Package identity derives and verifies team credentials.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const codeLen = 8

func NewGUID() string {
	return uuid.NewString()
}

// ShortCode is the human-facing team code: the last 8 hex characters of
// the GUID, upper-cased.
func ShortCode(guid string) string {
	hex := strings.ReplaceAll(guid, "-", "")
	if len(hex) > codeLen {
		hex = hex[len(hex)-codeLen:]
	}
	return strings.ToUpper(hex)
}

func HashPIN(pin string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing pin: %w", err)
	}
	return string(h), nil
}

func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
