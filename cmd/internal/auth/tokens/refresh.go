package tokens

import (
	"crypto/rand"
	"encoding/base64"
)

func newOpaqueRefreshToken(nBytes int) (string, error) {
	if nBytes < 32 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, no padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
