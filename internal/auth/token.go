package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btouchard/scout/internal/config"
)

// tokenPrefix is prepended to every generated token.
const tokenPrefix = "sct_"

// GenerateToken returns a new random API token and its hash. Only the hash
// belongs in the config file.
func GenerateToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = tokenPrefix + hex.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex-encoded SHA-256 of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenSet validates bearer tokens against configured hashes.
type TokenSet struct {
	entries []tokenEntry
}

type tokenEntry struct {
	name string
	hash []byte
}

// NewTokenSet builds a TokenSet. Hashes are compared case-insensitively.
func NewTokenSet(entries []config.APITokenEntry) (*TokenSet, error) {
	ts := &TokenSet{}
	for _, e := range entries {
		h, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(e.TokenHash)))
		if err != nil || len(h) != sha256.Size {
			return nil, fmt.Errorf("api token %q: token_hash must be a hex SHA-256 digest", e.Name)
		}
		ts.entries = append(ts.entries, tokenEntry{name: e.Name, hash: h})
	}
	return ts, nil
}

// Empty reports whether no tokens are configured.
func (ts *TokenSet) Empty() bool {
	return len(ts.entries) == 0
}

// Validate returns the name of the token matching raw.
func (ts *TokenSet) Validate(raw string) (string, bool) {
	sum := sha256.Sum256([]byte(raw))
	name, found := "", false
	// Every entry is compared, even after a match.
	for _, e := range ts.entries {
		if subtle.ConstantTimeCompare(sum[:], e.hash) == 1 && !found {
			name, found = e.name, true
		}
	}
	return name, found
}
