package domain

import "time"

// UserRole distinguishes reporters from support staff and administrators.
type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleSupport UserRole = "support"
	RoleAdmin   UserRole = "admin"
)

// User is the domain model for anyone who files or works incidents.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the hydration view of the user.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
