package request

// ApproveRequest is the request body for approving a pending town
type ApproveRequest struct {
	ID string `json:"id"`
	// TargetEmail overrides the submitter as the receiving player
	TargetEmail string `json:"target_email,omitempty"`
}

// RejectRequest is the request body for rejecting a pending town
type RejectRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// CleanupRequest is the request body for purging decided towns
type CleanupRequest struct {
	DaysToKeep *int `json:"days_to_keep,omitempty"`
}

// SetCurrencyRequest is the request body for overwriting a balance
type SetCurrencyRequest struct {
	Amount int64 `json:"amount"`
}

// CreateUserRequest is the request body for seeding a player
type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	MayhemID  string `json:"mayhem_id,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// TokenRequest is the request body for rotating a player's access token
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
