package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the application-level role carried by a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile is the application identity layered on top of the auth subject.
// ID equals the auth user id and references auth_users with ON DELETE CASCADE.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"not null" json:"email"`
	Role      Role      `gorm:"type:varchar(16);not null;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// IsAdmin reports whether the profile carries the admin role. Nil-safe.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
