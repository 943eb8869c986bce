package model

import (
	"strings"
	"time"
)

// User represents an account of the task manager.  The password hash is
// never serialized; handlers expose users through this struct directly.
//
// Fields:
//  ID              – primary key (UUID string).
//  Email           – unique, lowercased and trimmed.
//  PasswordHash    – bcrypt hashed password.
//  IsAdmin         – admins may manage other users and cannot be deleted.
//  IsActive        – false means the account was soft deleted.
//  LastLogin       – timestamp of the most recent successful login.
type User struct {
	ID              string      `json:"id" bson:"_id"`
	Name            string      `json:"name" bson:"name"`
	Email           string      `json:"email" bson:"email"`
	PasswordHash    string      `json:"-" bson:"passwordHash"`
	Avatar          string      `json:"avatar" bson:"avatar"`
	IsAdmin         bool        `json:"isAdmin" bson:"isAdmin"`
	IsActive        bool        `json:"isActive" bson:"isActive"`
	IsEmailVerified bool        `json:"isEmailVerified" bson:"isEmailVerified"`
	LastLogin       *time.Time  `json:"lastLogin" bson:"lastLogin"`
	Preferences     Preferences `json:"preferences" bson:"preferences"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// Role returns the role name carried in access tokens.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Preferences are per-user display and notification settings.
type Preferences struct {
	Theme         string        `json:"theme" bson:"theme"`
	Notifications Notifications `json:"notifications" bson:"notifications"`
	DateFormat    string        `json:"dateFormat" bson:"dateFormat"`
	Timezone      string        `json:"timezone" bson:"timezone"`
}

// Notifications toggles the notification channels of a user.
type Notifications struct {
	Email             bool `json:"email" bson:"email"`
	DeadlineReminders bool `json:"deadlineReminders" bson:"deadlineReminders"`
	TaskUpdates       bool `json:"taskUpdates" bson:"taskUpdates"`
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme: "light",
		Notifications: Notifications{
			Email:             true,
			DeadlineReminders: true,
			TaskUpdates:       true,
		},
		DateFormat: "DD/MM/YYYY",
		Timezone:   "UTC",
	}
}

// RefreshToken models a stored refresh token.  Only the SHA-256 hash of
// the raw token is persisted.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil while still active).
type RefreshToken struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user"`
	TokenHash string     `bson:"tokenHash"`
	ExpiresAt time.Time  `bson:"expiresAt"`
	RevokedAt *time.Time `bson:"revokedAt"`
	CreatedAt time.Time  `bson:"createdAt"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NameKey is the case-folded form used for per-user uniqueness of
// category names.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
