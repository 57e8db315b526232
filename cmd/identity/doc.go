// Package identity owns chat user accounts: the User record, its canonical
// (normalized) lookup keys, and the UserStore persistence boundary.
//
// Accounts are never hard-deleted; IsDeleted marks retired accounts while
// keeping their email and username reserved.
package identity
