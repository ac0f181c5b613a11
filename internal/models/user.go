package models

import (
	"time"
)

// Supported identity providers
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// User represents a RunOn user profile
type User struct {
	ID             string                 `json:"id"`
	Email          string                 `json:"email"`
	Name           string                 `json:"name"`
	Provider       string                 `json:"provider"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Preferences    map[string]interface{} `json:"preferences"`
	ProfilePicture string                 `json:"profile_picture,omitempty"`
}

// ProfileUpdate holds the user-editable profile fields.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name           *string                `json:"name,omitempty"`
	Preferences    map[string]interface{} `json:"preferences,omitempty"`
	ProfilePicture *string                `json:"profile_picture,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Preferences == nil && u.ProfilePicture == nil
}

// Apply copies the update onto the user and bumps UpdatedAt
func (u ProfileUpdate) Apply(user *User, now time.Time) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Preferences != nil {
		user.Preferences = u.Preferences
	}
	if u.ProfilePicture != nil {
		user.ProfilePicture = *u.ProfilePicture
	}
	user.UpdatedAt = now
}

// DefaultPreferences returns the preferences assigned to new users
func DefaultPreferences() map[string]interface{} {
	return map[string]interface{}{
		"notifications": true,
		"email_updates": true,
		"distance_unit": "km",
		"theme":         "light",
	}
}

// NewUser builds a fresh profile for a verified identity
func NewUser(id, email, name, provider string, now time.Time) *User {
	return &User{
		ID:          id,
		Email:       email,
		Name:        name,
		Provider:    provider,
		CreatedAt:   now,
		UpdatedAt:   now,
		Preferences: DefaultPreferences(),
	}
}
