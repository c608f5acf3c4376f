package server

import (
	"errors"
	"math/rand"
	"strings"
)

const joinCodeLength = 4

// GenerateJoinCode produces a short human-friendly code for joining a
// room, distinct from the match's uuid.
func GenerateJoinCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, joinCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		joinCode := string(code)

		if !usedCodes[joinCode] {
			return joinCode
		}
	}
}

func ValidateJoinCode(code string) error {
	if len(code) != joinCodeLength {
		return errors.New("INVALID_CODE: join code must be exactly 4 characters")
	}

	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("INVALID_CODE: join code must contain only letters A-Z")
		}
	}

	return nil
}

// LooksLikeJoinCode distinguishes a short code from a match uuid so
// lookups can accept either.
func LooksLikeJoinCode(s string) bool {
	return ValidateJoinCode(s) == nil
}

func NormalizeJoinCode(code string) string {
	return strings.ToUpper(code)
}
