package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// Ticket is the record bound 1:1 to a private support channel. The
// channel ID is its key in the store; the ticket number is assigned
// once and never reused.
type Ticket struct {
	TicketNumber int          `json:"ticketNumber"`
	ChannelID    string       `json:"channelId"`
	GuildID      string       `json:"guildId"`
	RequesterID  string       `json:"requesterId"`
	Subject      string       `json:"subject"`
	Service      string       `json:"service"`
	Amount       string       `json:"amount"`
	Status       TicketStatus `json:"status"`
	ClaimedBy    *string      `json:"claimedBy"`
	CreatedAt    time.Time    `json:"createdAt"`
	ClosedBy     *string      `json:"closedBy,omitempty"`
	ClosedAt     *time.Time   `json:"closedAt,omitempty"`
	CloseReason  string       `json:"closeReason,omitempty"`
}

// Claimed reports whether a staff member owns the ticket.
func (t *Ticket) Claimed() bool {
	return t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// PendingIntake holds the form fields a requester submitted before
// choosing a staff role. At most one exists per requester; submitting
// again overwrites the previous one.
type PendingIntake struct {
	Subject string `json:"subject"`
	Service string `json:"service"`
	Amount  string `json:"amount"`
}
