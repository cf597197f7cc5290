package events

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketClaimed EventType = "ticket_claimed"
	EventTicketClosed  EventType = "ticket_closed"
	EventTicketDeleted EventType = "ticket_deleted"
)

// Event represents a lifecycle event emitted by the ticket service.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	GuildID      string      `json:"guild_id"`
	ChannelID    string      `json:"channel_id"`
	TicketNumber int         `json:"ticket_number"`
	ActorID      string      `json:"actor_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID    string `json:"requester_id"`
	Subject        string `json:"subject"`
	Service        string `json:"service"`
	Amount         string `json:"amount"`
	NotifiedRoleID string `json:"notified_role_id,omitempty"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimedBy string `json:"claimed_by"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedBy string `json:"closed_by"`
	Reason   string `json:"reason"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Status domain.TicketStatus `json:"status"`
}
