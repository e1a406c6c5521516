// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash is an encoded cryptox hash.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is what an authenticated request knows about its caller.
type Identity struct {
	UserID   int64
	UserName string
}

// AuthToken is the single live bearer token of a user.
type AuthToken struct {
	UserID   int64
	Token    string
	IssuedAt time.Time
}
