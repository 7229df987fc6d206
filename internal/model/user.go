package model

import "time"

// User is a player record as held by the identity store.
// Email is the primary key; anonymous players get a synthetic one.
type User struct {
	Email        string    `json:"email"`
	UserID       string    `json:"user_id"`
	MayhemID     string    `json:"mayhem_id"`
	AccessToken  string    `json:"access_token,omitempty"`
	SessionKey   string    `json:"session_key,omitempty"`
	TownPath     string    `json:"town_path,omitempty"`
	Anonymous    bool      `json:"anonymous"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the per-request view of a resolved player
type Identity struct {
	Email       string
	UserID      string
	MayhemID    string // game-visible external id
	AccessToken string
	SessionKey  string
	TownPath    string // last path cached in the identity store
	Anonymous   bool
}

// Identity derives the request identity from the stored record
func (u *User) Identity() *Identity {
	return &Identity{
		Email:       u.Email,
		UserID:      u.UserID,
		MayhemID:    u.MayhemID,
		AccessToken: u.AccessToken,
		SessionKey:  u.SessionKey,
		TownPath:    u.TownPath,
		Anonymous:   u.Anonymous,
	}
}
