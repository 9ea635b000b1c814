package otp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for _, n := range []int{MinLength, DefaultLength, MaxLength} {
		code, err := Generate(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		assert.Equal(t, "", strings.Trim(code, "0123456789"), "code must be numeric")
	}

	_, err := Generate(3)
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = Generate(11)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestGenerateAlphanumeric(t *testing.T) {
	code, err := GenerateAlphanumeric(4)
	require.NoError(t, err)
	assert.Len(t, code, 4)
	for _, r := range code {
		assert.Contains(t, alphanumeric, string(r))
	}

	_, err = GenerateAlphanumeric(0)
	assert.Error(t, err)
}

func TestHashAndVerify(t *testing.T) {
	h := Hash("123456")
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash(" 123456 "))
	assert.NoError(t, Verify(h, "123456"))
	assert.NoError(t, Verify(h, "123456\n"))
	assert.ErrorIs(t, Verify(h, "654321"), ErrMismatch)
}
