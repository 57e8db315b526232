package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	paseto "aidanwoods.dev/go-paseto"
)

// GeneratePasetoV4SecretKeyHex returns a new Ed25519 secret key for CHATTY_PASETO_V4_SECRET_KEY_HEX.
func GeneratePasetoV4SecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// GenerateRSAPrivateKeyPEM returns a PKCS#1 PEM RSA key for CHATTY_JWT_PRIVATE_KEY.
func GenerateRSAPrivateKeyPEM(bits int) (string, error) {
	if bits < 2048 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", err
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block)), nil
}

// GenerateSecret returns n random bytes, base64url encoded, for CHATTY_JWT_SECRET or CHATTY_TOKEN_HMAC_KEY.
func GenerateSecret(n int) (string, error) {
	if n < 32 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
