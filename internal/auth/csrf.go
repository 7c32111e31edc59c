package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/BradenHooton/subsignature/internal/models"
	pkgauth "github.com/BradenHooton/subsignature/pkg/auth"
)

// CSRFTokenBytes is the entropy of a session's anti-forgery token (256 bits)
const CSRFTokenBytes = 32

// CSRFGuard issues one token per session and verifies presented tokens. The token
// is not rotated per request; it lives until the session is destroyed.
type CSRFGuard struct{}

func NewCSRFGuard() *CSRFGuard {
	return &CSRFGuard{}
}

// NewToken returns a fresh hex-encoded token
func (g *CSRFGuard) NewToken() (string, error) {
	token, err := pkgauth.RandomHex(CSRFTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	return token, nil
}

// Verify fails closed when either token is empty or they differ. The comparison
// does not short-circuit on the first differing byte.
func (g *CSRFGuard) Verify(expected, presented string) error {
	if expected == "" || presented == "" {
		return models.ErrCSRFInvalid
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return models.ErrCSRFInvalid
	}
	return nil
}
