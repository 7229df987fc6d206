package response

import (
	"time"

	"github.com/mcoot/townserver/internal/model"
)

// Message is a generic success body
type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PendingTown represents a pending town in API responses
type PendingTown struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	TownName        string    `json:"town_name"`
	Description     string    `json:"description"`
	FileSize        int64     `json:"file_size"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

// PendingTownFromModel converts a model.PendingTown. The staged path stays server side.
func PendingTownFromModel(t *model.PendingTown) PendingTown {
	return PendingTown{
		ID:              t.ID,
		Email:           t.Email,
		TownName:        t.TownName,
		Description:     t.Description,
		FileSize:        t.FileSize,
		SubmittedAt:     t.SubmittedAt,
		Status:          string(t.Status),
		RejectionReason: t.RejectionReason,
	}
}

// PendingTownList wraps a list of pending towns
type PendingTownList struct {
	Success bool          `json:"success"`
	Towns   []PendingTown `json:"towns"`
}

// PendingTownListFromModel converts a slice of model.PendingTown
func PendingTownListFromModel(towns []*model.PendingTown) PendingTownList {
	out := make([]PendingTown, len(towns))
	for i, t := range towns {
		out[i] = PendingTownFromModel(t)
	}
	return PendingTownList{Success: true, Towns: out}
}

// Submitted is returned after a public upload
type Submitted struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Approved is returned after an approval
type Approved struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Outcome string `json:"outcome"`
}

// Cleanup is returned after purging decided towns
type Cleanup struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// Currency is a player's balance
type Currency struct {
	Success bool   `json:"success"`
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

// User represents a created identity record
type User struct {
	Email       string `json:"email"`
	UserID      string `json:"user_id"`
	MayhemID    string `json:"mayhem_id"`
	AccessToken string `json:"access_token"`
	Anonymous   bool   `json:"anonymous"`
}

// UserFromModel converts a model.User
func UserFromModel(u *model.User) User {
	return User{
		Email:       u.Email,
		UserID:      u.UserID,
		MayhemID:    u.MayhemID,
		AccessToken: u.AccessToken,
		Anonymous:   u.Anonymous,
	}
}

// Health is the health check body
type Health struct {
	Status string `json:"status"`
}

// Token carries a freshly issued access token
type Token struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
}
