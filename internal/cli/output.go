package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case StatsResult:
		o.printStats(v)
	case PendingTown:
		o.printPendingTown(v)
	case PendingTownList:
		o.printPendingTownList(v)
	case Submitted:
		fmt.Fprintf(o.w, "%s\nID: %s\n", v.Message, v.ID)
	case ApproveResult:
		fmt.Fprintf(o.w, "%s (%s)\n", v.Message, v.Outcome)
	case CleanupResult:
		fmt.Fprintf(o.w, "Removed: %d\n", v.Removed)
	case Currency:
		fmt.Fprintf(o.w, "%s: %d donuts\n", v.Owner, v.Balance)
	case User:
		o.printUser(v)
	case Token:
		fmt.Fprintf(o.w, "Access token: %s\n", v.AccessToken)
	case Message:
		fmt.Fprintln(o.w, v.Message)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// StatsResult response type
type StatsResult struct {
	Active      int          `json:"active"`
	Peak        int          `json:"peak"`
	Connections []Connection `json:"connections"`
}

// Connection response type
type Connection struct {
	IP        string    `json:"ip"`
	Email     string    `json:"email"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Requests  int64     `json:"requests"`
}

// PendingTown response type (matches API)
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

// PendingTownList response type
type PendingTownList struct {
	Towns []PendingTown `json:"towns"`
}

// Submitted response type
type Submitted struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// ApproveResult response type
type ApproveResult struct {
	Message string `json:"message"`
	Outcome string `json:"outcome"`
}

// CleanupResult response type
type CleanupResult struct {
	Removed int `json:"removed"`
}

// Currency response type
type Currency struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

// User response type
type User struct {
	Email       string `json:"email"`
	UserID      string `json:"user_id"`
	MayhemID    string `json:"mayhem_id"`
	AccessToken string `json:"access_token"`
	Anonymous   bool   `json:"anonymous"`
}

// Token response type
type Token struct {
	AccessToken string `json:"access_token"`
}

// Message response type
type Message struct {
	Message string `json:"message"`
}

func (o *Output) printStats(s StatsResult) {
	fmt.Fprintf(o.w, "Active: %d (peak %d)\n", s.Active, s.Peak)
	if len(s.Connections) == 0 {
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IP\tEMAIL\tREQUESTS\tLAST SEEN")
	for _, c := range s.Connections {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.IP, c.Email, c.Requests, c.LastSeen.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func (o *Output) printPendingTown(t PendingTown) {
	fmt.Fprintf(o.w, "Town: %s (%s)\n", t.TownName, t.ID)
	fmt.Fprintf(o.w, "Submitted by: %s\n", t.Email)
	fmt.Fprintf(o.w, "Submitted at: %s\n", t.SubmittedAt.Format(time.RFC3339))
	fmt.Fprintf(o.w, "Size: %d bytes\n", t.FileSize)
	fmt.Fprintf(o.w, "Status: %s\n", t.Status)
	if t.Description != "" {
		fmt.Fprintf(o.w, "Description: %s\n", t.Description)
	}
	if t.RejectionReason != "" {
		fmt.Fprintf(o.w, "Rejection reason: %s\n", t.RejectionReason)
	}
}

func (o *Output) printPendingTownList(l PendingTownList) {
	if len(l.Towns) == 0 {
		fmt.Fprintln(o.w, "No pending towns")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tTOWN\tSIZE\tSUBMITTED")
	for _, t := range l.Towns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Email, t.TownName, t.FileSize, t.SubmittedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func (o *Output) printUser(u User) {
	fmt.Fprintf(o.w, "Email: %s\n", u.Email)
	fmt.Fprintf(o.w, "User ID: %s\n", u.UserID)
	fmt.Fprintf(o.w, "Mayhem ID: %s\n", u.MayhemID)
	fmt.Fprintf(o.w, "Access token: %s\n", u.AccessToken)
	if u.Anonymous {
		fmt.Fprintln(o.w, "Anonymous: yes")
	}
}
