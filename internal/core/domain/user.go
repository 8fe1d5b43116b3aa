package domain

import "time"

// User is the persisted account record. It is the single source of truth for
// authentication: the session validator re-reads it on every request.
type User struct {
	ID          string `json:"id"`
	GoogleID    string `json:"-"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	// SessionSecret holds the digest of the only live session secret, or nil
	// when the account is signed out.
	SessionSecret *string   `json:"-"`
	IsOnline      bool      `json:"is_online"`
	LastActiveAt  time.Time `json:"last_active_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExternalIdentity is what a verified third-party identity assertion tells us
// about the caller.
type ExternalIdentity struct {
	Subject   string
	Email     string
	Name      string
	Picture   string
	ExpiresAt time.Time
}

// Identity is the authenticated caller as seen by downstream handlers.
type Identity struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// RequireAdmin reports whether id may perform administrative operations.
func RequireAdmin(id *Identity) error {
	if id == nil || !id.IsAdmin {
		return ErrForbidden
	}
	return nil
}
