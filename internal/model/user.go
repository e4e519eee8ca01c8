package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a directory user: a student, a center admin, or a super admin.
type User struct {
	ID           uuid.UUID `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Surname      string    `json:"surname"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Role         UserRole  `json:"role"`
	CenterID     *string   `json:"center_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName returns "Surname Name".
func (u *User) FullName() string {
	if u.Name == "" {
		return u.Surname
	}
	return u.Surname + " " + u.Name
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Login    string `json:"login" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
