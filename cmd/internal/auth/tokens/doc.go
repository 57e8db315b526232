// Package tokens issues the credentials handed to chat clients.
//
// Access tokens are short-lived signed tokens carrying the user's identity
// (sub, email, username, optional displayName) plus a unique jti. The signing
// scheme is chosen once at startup from the configured key material:
//
//  1. CHATTY_JWT_PRIVATE_KEY: RSA private key (PEM), JWT RS256.
//  2. CHATTY_PASETO_V4_SECRET_KEY_HEX: Ed25519 key, PASETO v4.public.
//  3. CHATTY_JWT_SECRET: shared secret (>= 32 bytes), JWT HS256.
//
// With none of them set, LoadConfigFromEnv fails with ErrConfig.
//
// Refresh secrets are opaque base64url strings. Only their digest
// (see cmd/security/token) is ever persisted.
package tokens
