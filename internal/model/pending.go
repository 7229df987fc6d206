package model

import "time"

// PendingStatus is the moderation state of an uploaded town
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed
func (s PendingStatus) IsTerminal() bool {
	return s == PendingStatusApproved || s == PendingStatusRejected
}

// PendingTown is an uploaded town awaiting a moderator decision
type PendingTown struct {
	ID              string
	Email           string
	TownName        string
	Description     string
	FilePath        string // staged copy of the upload
	FileSize        int64
	SubmittedAt     time.Time
	Status          PendingStatus
	RejectionReason string
}

// PendingEventKind names a moderation transition
type PendingEventKind string

const (
	PendingEventSubmitted PendingEventKind = "submitted"
	PendingEventApproved  PendingEventKind = "approved"
	PendingEventRejected  PendingEventKind = "rejected"
)

// PendingEvent is emitted after each moderation transition
type PendingEvent struct {
	Kind        PendingEventKind `json:"kind"`
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	TargetEmail string           `json:"target_email,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}
