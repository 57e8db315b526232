// Package token provides the hashing primitives for opaque refresh secrets.
//
// Stored refresh records never carry the raw secret, only its digest:
//   - SHA-256 (base64) when no key is configured.
//   - HMAC-SHA256 (base64) when CHATTY_TOKEN_HMAC_KEY is set.
//
// When CHATTY_REQUIRE_TOKEN_HMAC is enabled the key must be present and at least
// 32 bytes long; startup fails otherwise.
package token
