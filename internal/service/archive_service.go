package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/gateway"
)

const truncationMarker = "\n... (truncated)"

// ArchiveService builds and posts the transcript summary for a closed
// ticket. Archiving is best-effort: its errors never block the close
// flow or the channel deletion.
type ArchiveService struct {
	gw       gateway.Gateway
	logger   *zap.Logger
	pageSize int
	limit    int
}

// NewArchiveService constructs the service. pageSize defaults to 100
// and limit to 1000 characters when non-positive.
func NewArchiveService(gw gateway.Gateway, logger *zap.Logger, pageSize, limit int) *ArchiveService {
	if pageSize <= 0 {
		pageSize = 100
	}
	if limit <= 0 {
		limit = 1000
	}
	return &ArchiveService{gw: gw, logger: logger, pageSize: pageSize, limit: limit}
}

// Archive fetches the full channel history and posts one summary
// record to the archive channel.
func (a *ArchiveService) Archive(ctx context.Context, ticket domain.Ticket, archiveChannelID string) error {
	transcript, err := a.buildTranscript(ctx, ticket.ChannelID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	claimer := "-"
	if ticket.ClaimedBy != nil {
		claimer = "<@" + *ticket.ClaimedBy + ">"
	} else if ticket.ClosedBy != nil {
		claimer = "<@" + *ticket.ClosedBy + ">"
	}

	reason := ticket.CloseReason
	if reason == "" {
		reason = "No note provided"
	}

	closedAt := "-"
	if ticket.ClosedAt != nil {
		closedAt = ticket.ClosedAt.Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d - %s - Archive\n", ticket.TicketNumber, ticket.Subject)
	fmt.Fprintf(&b, "Client: <@%s>\n", ticket.RequesterID)
	fmt.Fprintf(&b, "Admin: %s\n", claimer)
	fmt.Fprintf(&b, "Subject: %s\n", dash(ticket.Subject))
	fmt.Fprintf(&b, "Service: %s\n", dash(ticket.Service))
	fmt.Fprintf(&b, "Amount: %s\n", dash(ticket.Amount))
	fmt.Fprintf(&b, "Status: closed\nClosed at: %s\n", closedAt)
	fmt.Fprintf(&b, "Note: %s\n", reason)
	fmt.Fprintf(&b, "Chat history:\n```\n%s\n```", transcript)

	_, err = a.gw.SendMessage(ctx, archiveChannelID, gateway.OutgoingMessage{Content: b.String()})
	if err != nil {
		return fmt.Errorf("post archive: %w", err)
	}
	return nil
}

// buildTranscript pages backward through the channel until exhausted
// and returns the formatted, chronological, truncated text.
func (a *ArchiveService) buildTranscript(ctx context.Context, channelID string) (string, error) {
	var all []gateway.Message
	before := ""
	for {
		page, err := a.gw.FetchMessagesBefore(ctx, channelID, before, a.pageSize)
		if err != nil {
			return "", err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		// Pages arrive newest-first; the last entry is the next
		// boundary and is never fetched again.
		before = page[len(page)-1].ID
	}

	// Oldest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	var b strings.Builder
	for _, msg := range all {
		if msg.Bot && !msg.Webhook {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.AuthorName, content)
	}

	history := b.String()
	if history == "" {
		return "No chat history available.", nil
	}
	if len(history) > a.limit {
		history = history[:a.limit] + truncationMarker
	}
	return history, nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
