// Package auth authenticates staff users and supplier portal accounts and
// binds the resulting actor to the session.
package auth

import "time"

// StaffUser is an internal user account.
type StaffUser struct {
	ID           int64
	Username     string
	Email        string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// SupplierAccount is a supplier portal login.
type SupplierAccount struct {
	SupplierID   int64
	CompanyName  string
	Email        string
	PasswordHash string
	Active       bool
}
