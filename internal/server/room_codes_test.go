package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bisca-server/internal/server"
)

func TestGenerateJoinCodeFormat(t *testing.T) {
	assert := assert.New(t)
	usedCodes := make(map[string]bool)

	for range 100 {
		code := server.GenerateJoinCode(usedCodes)

		assert.Equal(4, len(code))

		for _, ch := range code {
			assert.True(ch >= 'A' && ch <= 'Z')
		}
	}
}

func TestGenerateJoinCodeUniqueness(t *testing.T) {
	usedCodes := make(map[string]bool)
	generatedCodes := make(map[string]bool)

	for range 1000 {
		code := server.GenerateJoinCode(usedCodes)

		assert.False(t, generatedCodes[code], "Code %s was generated twice", code)

		generatedCodes[code] = true
		usedCodes[code] = true
	}

	assert.Equal(t, 1000, len(generatedCodes))
}

func TestGenerateJoinCodeAvoidsUsedCodes(t *testing.T) {
	usedCodes := make(map[string]bool)

	usedCodes["AAAA"] = true
	usedCodes["ZZZZ"] = true
	usedCodes["TEST"] = true

	for range 100 {
		code := server.GenerateJoinCode(usedCodes)

		assert.NotEqual(t, "AAAA", code)
		assert.NotEqual(t, "ZZZZ", code)
		assert.NotEqual(t, "TEST", code)
	}
}

func TestValidateJoinCodeValidCodes(t *testing.T) {
	validCodes := []string{"BEAR", "GAME", "PLAY", "AAAA", "ZZZZ"}

	for _, code := range validCodes {
		err := server.ValidateJoinCode(code)
		assert.NoError(t, err, "Code %s should be valid", code)
	}
}

func TestValidateJoinCodeInvalidLength(t *testing.T) {
	invalidCodes := []string{"", "A", "AB", "ABC", "ABCDE", "ABCDEF"}

	for _, code := range invalidCodes {
		err := server.ValidateJoinCode(code)
		assert.Error(t, err, "Code %s should be invalid (wrong length)", code)
		assert.Contains(t, err.Error(), "exactly 4 characters")
	}
}

func TestValidateJoinCodeInvalidCharacters(t *testing.T) {
	invalidCodes := []string{
		"1234", // numbers
		"A1B2", // letters + numbers
		"A-B!", // special chars
		"T@ST", // special chars
		"A BC", // space
		" ABC", // leading space
	}

	for _, code := range invalidCodes {
		err := server.ValidateJoinCode(code)
		assert.Error(t, err, "Code %s should be invalid (bad characters)", code)
		assert.Contains(t, err.Error(), "only letters A-Z")
	}
}

func TestLooksLikeJoinCode(t *testing.T) {
	assert.True(t, server.LooksLikeJoinCode("BEAR"))
	assert.True(t, server.LooksLikeJoinCode("bear"), "lowercase codes are normalized")

	assert.False(t, server.LooksLikeJoinCode("6a6e64cc-9f4a-4b1e-a6cb-43a0b52ef6a4"))
	assert.False(t, server.LooksLikeJoinCode("AB12"))
}

func TestNormalizeJoinCode(t *testing.T) {
	assert.Equal(t, "BEAR", server.NormalizeJoinCode("bear"))
	assert.Equal(t, "BEAR", server.NormalizeJoinCode("BEAR"))
}
