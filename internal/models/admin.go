package models

// Admin is a platform operator identity, seeded directly in the system
// database. Admins work the cross-tenant support queue.
type Admin struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}
