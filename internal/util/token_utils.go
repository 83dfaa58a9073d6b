package util

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

// generateRandomString draws length characters from alphabet, which must hold
// between 1 and 256 characters.
func generateRandomString(r io.Reader, length int, alphabet string) (string, error) {
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", fmt.Errorf("alphabet must hold 1 to 256 characters, got %d", len(alphabet))
	}
	// Bytes at or above the largest multiple of len(alphabet) that fits in a
	// byte are discarded so every character is equally likely.
	maxUnbiased := 256 - 256%len(alphabet)

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4)

	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

func GenerateToken() (string, error) {
	return GenerateTokenFrom(rand.Reader)
}

// GenerateTokenFrom draws a key.TokenLength token from r. Production code
// must pass a CSPRNG; tests may pass a deterministic reader.
func GenerateTokenFrom(r io.Reader) (string, error) {
	token, err := generateRandomString(r, key.TokenLength, key.TokenAlphabet)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func HashToken(token string) string {
	hashBytes := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hashBytes)
}
