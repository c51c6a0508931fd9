package user

import (
	"time"
)

// Role strings carried in identity tokens. A role is always derived from
// the IsProfessional flag via RoleFor, never stored independently.
const (
	RoleProfessional = "professional"
	RoleUser         = "user"
)

// RoleFor returns the role for a professional flag. This is the only place
// role strings are produced.
func RoleFor(isProfessional bool) string {
	if isProfessional {
		return RoleProfessional
	}
	return RoleUser
}

// User represents a user account in the system.
type User struct {
	ID             string `gorm:"primaryKey;type:text"`
	Name           string `gorm:"not null;type:text"`
	Email          string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash   string `gorm:"not null;type:text"`
	IsProfessional bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Role returns the user's derived role.
func (u *User) Role() string {
	return RoleFor(u.IsProfessional)
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Claims represents a verified identity extracted from a token.
type Claims struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	IsProfessional bool   `json:"is_professional"`
	Role           string `json:"role"`
}
