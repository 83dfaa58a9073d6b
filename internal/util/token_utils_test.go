package util

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, key.TokenLength)
	for _, c := range token {
		assert.True(t, strings.ContainsRune(key.TokenAlphabet, c), "unexpected character %q", c)
	}
}

func TestGenerateTokenSkipsBiasedBytes(t *testing.T) {
	// 0xff is above the unbiased ceiling and must be dropped; 0 and 61 map
	// to the first and last alphabet characters.
	src := bytes.Repeat([]byte{0xff, 0, 61}, 64)

	token, err := GenerateTokenFrom(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, token, key.TokenLength)
	assert.Equal(t, strings.Repeat("A9", key.TokenLength/2), token)
}

func TestGenerateRandomStringBoundFollowsAlphabet(t *testing.T) {
	// For a 10-char alphabet bytes up to 249 are usable and 250+ are dropped.
	src := bytes.Repeat([]byte{250, 255, 249, 0}, 8)

	s, err := generateRandomString(bytes.NewReader(src), 4, "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "9090", s)
}

func TestGenerateRandomStringRejectsBadAlphabet(t *testing.T) {
	_, err := generateRandomString(bytes.NewReader(make([]byte, 16)), 4, "")
	assert.Error(t, err)
	_, err = generateRandomString(bytes.NewReader(make([]byte, 16)), 4, strings.Repeat("a", 257))
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateTokenReaderError(t *testing.T) {
	_, err := GenerateTokenFrom(failingReader{})
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}
