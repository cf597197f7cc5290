package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/repository"
)

// NotificationService posts lifecycle log entries to the configured
// log channel. It runs strictly after the authoritative persist (it
// consumes dispatcher events), so its failures can only cost a log
// message.
type NotificationService struct {
	dispatcher events.Dispatcher
	settings   repository.SettingsStore
	gw         gateway.Gateway
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, settings repository.SettingsStore, gw gateway.Gateway, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		settings:   settings,
		gw:         gw,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.handleTicketClaimed)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	line := fmt.Sprintf("New ticket #%d in <#%s> by <@%s>\nSubject: %s\nService: %s\nAmount: %s",
		event.TicketNumber, event.ChannelID, payload.RequesterID,
		payload.Subject, payload.Service, payload.Amount)
	n.post(ctx, line)
	return nil
}

func (n *NotificationService) handleTicketClaimed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClaimedPayload)
	if !ok {
		return nil
	}
	n.post(ctx, fmt.Sprintf("Ticket #%d claimed by <@%s>", event.TicketNumber, payload.ClaimedBy))
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return nil
	}
	line := fmt.Sprintf("Ticket #%d in <#%s> closed by <@%s>\nResolution: %s",
		event.TicketNumber, event.ChannelID, payload.ClosedBy, payload.Reason)
	n.post(ctx, line)
	return nil
}

func (n *NotificationService) post(ctx context.Context, content string) {
	settings, err := n.settings.Get(ctx)
	if err != nil {
		n.logger.Warn("settings read failed for log entry", zap.Error(err))
		return
	}
	if settings.LogChannelID == "" {
		return
	}
	if _, err := n.gw.SendMessage(ctx, settings.LogChannelID, gateway.OutgoingMessage{Content: content}); err != nil {
		n.logger.Warn("log channel post failed",
			zap.String("channel_id", settings.LogChannelID), zap.Error(err))
	}
}
