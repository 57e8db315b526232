// Package session models refresh-token records, the durable half of a chatty login.
//
// Every issued refresh secret is stored as exactly one RefreshTokenRecord keyed
// by a deterministic hash of the secret. A record is written once and revoked at
// most once; expiry is derived from ExpiresAt and never written back.
//
// The package holds the record type, its state machine, the Store contract
// used by the auth core and a PostgreSQL implementation. The in-memory store
// lives in cmd/internal/storage/memory.
package session
