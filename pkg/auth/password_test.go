package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{"valid password", "Signature42", false, ""},
		{"too short", "Ab1", true, "at least 8 characters"},
		{"missing uppercase", "signature42", true, "uppercase"},
		{"missing lowercase", "SIGNATURE42", true, "lowercase"},
		{"missing digit", "SignatureXY", true, "digit"},
		{"common password", "Password1", true, "too common"},
		{"too long", "Aa1" + string(make([]byte, 80)), true, "at most 72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)

			var pve *PasswordValidationError
			assert.True(t, errors.As(err, &pve))
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Signature42")
	require.NoError(t, err)
	assert.NotEqual(t, "Signature42", hash)

	assert.NoError(t, ComparePassword(hash, "Signature42"))
	assert.Error(t, ComparePassword(hash, "signature42"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestCompareDummy_AlwaysFails(t *testing.T) {
	assert.Error(t, CompareDummy("subsignature-dummy-password"))
	assert.Error(t, CompareDummy(""))
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	require.NoError(t, err)
	b, err := RandomHex(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
