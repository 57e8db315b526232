// Package password hashes and verifies chat account credentials with Argon2id.
//
// Hashes use the PHC string form ($argon2id$v=19$m=..,t=..,p=..$salt$key).
// Cost parameters and the length policy come from CHATTY_ARGON2_* and
// CHATTY_PASSWORD_* environment variables.
//
// Stored hashes are untrusted input during Verify: strings whose cost
// parameters exceed twice the configured maximum are refused.
package password
