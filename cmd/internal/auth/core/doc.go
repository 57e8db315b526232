// Package core is the chatty authentication core.
//
// It registers accounts, exchanges credentials for an access token and a
// single-use refresh token, rotates refresh tokens with reuse detection and
// revokes sessions. Every operation runs in one storage.UnitOfWork
// transaction; rejections that must still write (a reuse cascade, revoking an
// expired token) commit first and report the error afterwards.
//
// Access tokens are stateless and stay valid until they expire, even after
// LogoutAllSessions. Only refresh tokens are revocable.
package core
