package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/intake"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/pkg/sanitize"
	"github.com/spec-kit/support-bot/pkg/util"
)

// Interaction component identifiers.
const (
	FormIntake     = "ticket_intake"
	FormClose      = "ticket_close"
	MenuRoleSelect = "ticket_role_select"

	noRoleOption = "none"
)

// TicketService drives the ticket lifecycle: intake, creation, claim,
// close, archive, and deferred channel deletion. It owns the in-memory
// ticket map and is the only writer of the ticket store. The mutex
// keeps claim's compare-and-swap and the claim-before-close guard
// correct on a multi-threaded runtime.
type TicketService struct {
	mu         sync.Mutex
	tickets    map[string]domain.Ticket
	nextNumber int

	store      repository.TicketStore
	settings   repository.SettingsStore
	intake     intake.Store
	gw         gateway.Gateway
	dispatcher events.Dispatcher
	archiver   *ArchiveService
	scheduler  DeleteScheduler
	logger     *zap.Logger

	deleteDelay time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store       repository.TicketStore
	Settings    repository.SettingsStore
	Intake      intake.Store
	Gateway     gateway.Gateway
	Dispatcher  events.Dispatcher
	Archiver    *ArchiveService
	Scheduler   DeleteScheduler
	Logger      *zap.Logger
	DeleteDelay time.Duration
}

// NewTicketService loads persisted tickets and rebuilds the counter
// as the highest persisted number; the in-memory counter is never
// trusted across restarts.
func NewTicketService(ctx context.Context, deps TicketDependencies) (*TicketService, error) {
	tickets, err := deps.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	highest := 0
	for _, t := range tickets {
		if t.TicketNumber > highest {
			highest = t.TicketNumber
		}
	}

	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}

	return &TicketService{
		tickets:     tickets,
		nextNumber:  highest,
		store:       deps.Store,
		settings:    deps.Settings,
		intake:      deps.Intake,
		gw:          deps.Gateway,
		dispatcher:  deps.Dispatcher,
		archiver:    deps.Archiver,
		scheduler:   scheduler,
		logger:      deps.Logger,
		deleteDelay: deps.DeleteDelay,
	}, nil
}

// PostPanel sends the ticket panel with its buttons to a channel.
func (s *TicketService) PostPanel(ctx context.Context, channelID string) error {
	msg := gateway.OutgoingMessage{
		Content: "Support Ticket System\nClick one of the buttons below:",
		Buttons: []gateway.Button{
			{ID: gateway.ButtonCreateTicket, Label: "Create Ticket"},
			{ID: gateway.ButtonPriceService, Label: "Price Service"},
			{ID: gateway.ButtonPriceLock, Label: "Price Lock"},
		},
	}
	_, err := s.gw.SendMessage(ctx, channelID, msg)
	return err
}

// BeginIntake shows the intake form to the requester.
func (s *TicketService) BeginIntake(ctx context.Context, ev *gateway.PanelButton) error {
	form := gateway.Form{
		ID:    FormIntake,
		Title: "Create Support Ticket",
		Fields: []gateway.FormField{
			{ID: "subject", Label: "World Name", Placeholder: "Put your world name here", Required: true, MaxLength: 100},
			{ID: "service", Label: "Service", Placeholder: "The service you want to buy", Required: true, MaxLength: 50},
			{ID: "amount", Label: "Amount", Placeholder: "The amount you want to buy", Required: true, MaxLength: 1000},
		},
	}
	return s.gw.ShowForm(ctx, ev.InteractionID, form)
}

// SubmitIntake buffers the submitted fields and asks the requester
// which staff role to notify. Submitting twice overwrites the
// previous buffer entry.
func (s *TicketService) SubmitIntake(ctx context.Context, ev *gateway.IntakeSubmitted) error {
	data := domain.PendingIntake{Subject: ev.Subject, Service: ev.Service, Amount: ev.Amount}
	if err := s.intake.Put(ctx, ev.Actor.ID, data); err != nil {
		return util.NewInternalError(err)
	}

	menu, err := s.staffRoleMenu(ctx, ev.GuildID)
	if err != nil {
		return util.NewInternalError(err)
	}
	prompt := "Almost done! Select which staff role should be notified for this ticket:"
	if err := s.gw.PromptSelect(ctx, ev.InteractionID, prompt, menu); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}

func (s *TicketService) staffRoleMenu(ctx context.Context, guildID string) (gateway.SelectMenu, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return gateway.SelectMenu{}, err
	}
	roles, err := s.gw.GuildRoles(ctx, guildID)
	if err != nil {
		return gateway.SelectMenu{}, err
	}

	staff := make([]gateway.Role, 0, len(roles))
	for _, role := range roles {
		if role.Managed {
			continue
		}
		if settings.HasStaffRole([]string{role.ID}) {
			staff = append(staff, role)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].Position > staff[j].Position })

	options := make([]gateway.SelectOption, 0, len(staff))
	for _, role := range staff {
		options = append(options, gateway.SelectOption{Label: role.Name, Value: role.ID})
	}
	if len(options) == 0 {
		options = append(options, gateway.SelectOption{Label: "No Staff Roles Configured", Value: noRoleOption})
	}
	if len(options) > 25 {
		options = options[:25]
	}
	return gateway.SelectMenu{ID: MenuRoleSelect, Options: options}, nil
}

// CompleteIntake consumes the pending intake, creates the private
// channel, and persists the new open ticket. The ticket number is
// allocated only once the channel exists, so failed creations never
// burn a number.
func (s *TicketService) CompleteIntake(ctx context.Context, ev *gateway.RoleSelected) error {
	data, ok, err := s.intake.Take(ctx, ev.Actor.ID)
	if err != nil {
		return util.NewInternalError(err)
	}
	if !ok {
		return util.NewPreconditionError("MISSING_INTAKE", "Ticket data not found. Please try again.")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.restoreIntake(ctx, ev.Actor.ID, data)
		return util.NewInternalError(err)
	}

	serviceName := sanitize.ChannelName(data.Service, "service")
	userName := sanitize.ChannelName(ev.Actor.DisplayName, "player")
	channelName := fmt.Sprintf("ticket-%s-%s", serviceName, userName)

	overrides := []gateway.Override{
		{Kind: gateway.OverrideEveryone, View: false},
		{Kind: gateway.OverrideUser, ID: ev.Actor.ID, View: true},
	}
	if ev.RoleID != "" && ev.RoleID != noRoleOption {
		overrides = append(overrides, gateway.Override{Kind: gateway.OverrideRole, ID: ev.RoleID, View: true})
	}

	spec := gateway.ChannelSpec{
		GuildID:   ev.GuildID,
		Name:      channelName,
		ParentID:  settings.TicketCategoryID,
		Overrides: overrides,
	}
	channelID, err := s.gw.CreateChannel(ctx, spec)
	if err != nil {
		s.restoreIntake(ctx, ev.Actor.ID, data)
		return util.NewInternalError(fmt.Errorf("create ticket channel: %w", err))
	}

	s.mu.Lock()
	s.nextNumber++
	number := s.nextNumber
	ticket := domain.Ticket{
		TicketNumber: number,
		ChannelID:    channelID,
		GuildID:      ev.GuildID,
		RequesterID:  ev.Actor.ID,
		Subject:      data.Subject,
		Service:      data.Service,
		Amount:       data.Amount,
		Status:       domain.TicketStatusOpen,
		ClaimedBy:    nil,
		CreatedAt:    time.Now().UTC(),
	}
	s.tickets[channelID] = ticket
	if err := s.store.Save(ctx, s.tickets); err != nil {
		delete(s.tickets, channelID)
		s.nextNumber--
		s.mu.Unlock()
		s.restoreIntake(ctx, ev.Actor.ID, data)
		return util.NewInternalError(fmt.Errorf("persist ticket: %w", err))
	}
	s.mu.Unlock()

	// From here on the ticket is committed; side-effect failures are
	// logged and swallowed.
	notify := fmt.Sprintf("<@%s> Your ticket has been created!", ev.Actor.ID)
	if ev.RoleID != "" && ev.RoleID != noRoleOption {
		notify = fmt.Sprintf("<@&%s> New ticket created by <@%s>", ev.RoleID, ev.Actor.ID)
	}
	welcome := gateway.OutgoingMessage{
		Content: fmt.Sprintf("%s\nTicket #%d\nWorld Name: %s\nService: %s\nAmount: %s",
			notify, number, data.Subject, data.Service, data.Amount),
		Buttons: []gateway.Button{
			{ID: gateway.ButtonCloseTicket, Label: "Close Ticket"},
			{ID: gateway.ButtonClaimTicket, Label: "Claim Ticket"},
		},
	}
	if _, err := s.gw.SendMessage(ctx, channelID, welcome); err != nil {
		s.logger.Warn("ticket welcome message failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCreated,
		GuildID:      ev.GuildID,
		ChannelID:    channelID,
		TicketNumber: number,
		ActorID:      ev.Actor.ID,
		Payload: events.TicketCreatedPayload{
			RequesterID:    ev.Actor.ID,
			Subject:        data.Subject,
			Service:        data.Service,
			Amount:         data.Amount,
			NotifiedRoleID: ev.RoleID,
		},
	})

	if err := s.gw.Reply(ctx, ev.InteractionID, fmt.Sprintf("Your ticket has been created: <#%s>", channelID), true); err != nil {
		s.logger.Warn("ticket creation reply failed", zap.Error(err))
	}
	return nil
}

func (s *TicketService) restoreIntake(ctx context.Context, requesterID string, data domain.PendingIntake) {
	if err := s.intake.Put(ctx, requesterID, data); err != nil {
		s.logger.Warn("restoring pending intake failed",
			zap.String("requester_id", requesterID), zap.Error(err))
	}
}

// Claim assigns the ticket to the acting staff member. First claim
// wins: the compare-and-swap on claimedBy happens under the service
// mutex together with the persist.
func (s *TicketService) Claim(ctx context.Context, ev *gateway.ClaimClicked) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return util.NewInternalError(err)
	}
	if !settings.HasStaffRole(ev.Actor.RoleIDs) {
		return util.NewPermissionError("NOT_STAFF", "You do not have permission to claim.")
	}

	s.mu.Lock()
	ticket, ok := s.tickets[ev.ChannelID]
	if !ok {
		s.mu.Unlock()
		return util.NewPreconditionError("INVALID_TICKET_CHANNEL", "This is not a valid ticket channel.")
	}
	if ticket.Claimed() {
		claimer := *ticket.ClaimedBy
		s.mu.Unlock()
		return util.NewPreconditionError("ALREADY_CLAIMED",
			fmt.Sprintf("This ticket is already claimed by <@%s>", claimer))
	}

	previous := ticket
	actorID := ev.Actor.ID
	ticket.ClaimedBy = &actorID
	ticket.Status = domain.TicketStatusInProgress
	s.tickets[ev.ChannelID] = ticket
	if err := s.store.Save(ctx, s.tickets); err != nil {
		s.tickets[ev.ChannelID] = previous
		s.mu.Unlock()
		return util.NewInternalError(fmt.Errorf("persist claim: %w", err))
	}
	s.mu.Unlock()

	// Rename encodes the claimer in the channel name; failure is a
	// cosmetic loss, the persisted status is the source of truth.
	serviceName := sanitize.ChannelName(ticket.Service, "service")
	staffName := sanitize.ChannelName(ev.Actor.DisplayName, "staff")
	if err := s.gw.RenameChannel(ctx, ev.ChannelID, fmt.Sprintf("ticket-%s-%s", serviceName, staffName)); err != nil {
		s.logger.Warn("channel rename failed",
			zap.String("channel_id", ev.ChannelID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketClaimed,
		GuildID:      ticket.GuildID,
		ChannelID:    ev.ChannelID,
		TicketNumber: ticket.TicketNumber,
		ActorID:      ev.Actor.ID,
		Payload:      events.TicketClaimedPayload{ClaimedBy: ev.Actor.ID},
	})

	if err := s.gw.Reply(ctx, ev.InteractionID,
		fmt.Sprintf("Ticket claimed: this ticket is now handled by <@%s>", ev.Actor.ID), false); err != nil {
		s.logger.Warn("claim announcement failed", zap.Error(err))
	}
	return nil
}

// RequestClose validates the close guards and shows the close-reason
// form. The same guards run again on submission.
func (s *TicketService) RequestClose(ctx context.Context, ev *gateway.CloseClicked) error {
	s.mu.Lock()
	ticket, ok := s.tickets[ev.ChannelID]
	s.mu.Unlock()

	if err := closeGuard(ticket, ok, ev.Actor); err != nil {
		return err
	}

	form := gateway.Form{
		ID:    FormClose,
		Title: "Close Ticket",
		Fields: []gateway.FormField{
			{ID: "reason", Label: "Resolution Notes", Placeholder: "Status of the service", MaxLength: 500, Paragraph: true},
		},
	}
	return s.gw.ShowForm(ctx, ev.InteractionID, form)
}

// closeGuard enforces the claim-before-close and claimer-or-admin
// rules.
func closeGuard(ticket domain.Ticket, ok bool, actor gateway.Actor) error {
	if !ok {
		return util.NewPreconditionError("INVALID_TICKET_CHANNEL", "This is not a valid ticket channel.")
	}
	if ticket.Status == domain.TicketStatusClosed {
		return util.NewPreconditionError("ALREADY_CLOSED", "This ticket is already closed.")
	}
	if !ticket.Claimed() {
		return util.NewPreconditionError("NOT_CLAIMED", "This ticket has not been claimed yet.")
	}
	if *ticket.ClaimedBy != actor.ID && !actor.IsAdmin {
		return util.NewPermissionError("WRONG_CLAIMER",
			fmt.Sprintf("Only <@%s> or an admin can close this ticket.", *ticket.ClaimedBy))
	}
	return nil
}

// SubmitClose commits the close transition, announces it, archives
// the transcript, and schedules the delayed channel deletion. Guards
// are re-checked because the ticket may have changed between showing
// and submitting the form.
func (s *TicketService) SubmitClose(ctx context.Context, ev *gateway.CloseSubmitted) error {
	reason := ev.Reason
	if reason == "" {
		reason = "No reason provided"
	}

	s.mu.Lock()
	ticket, ok := s.tickets[ev.ChannelID]
	if err := closeGuard(ticket, ok, ev.Actor); err != nil {
		s.mu.Unlock()
		return err
	}

	previous := ticket
	now := time.Now().UTC()
	actorID := ev.Actor.ID
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedBy = &actorID
	ticket.ClosedAt = &now
	ticket.CloseReason = reason
	s.tickets[ev.ChannelID] = ticket
	if err := s.store.Save(ctx, s.tickets); err != nil {
		s.tickets[ev.ChannelID] = previous
		s.mu.Unlock()
		return util.NewInternalError(fmt.Errorf("persist close: %w", err))
	}
	s.mu.Unlock()

	if err := s.gw.Reply(ctx, ev.InteractionID,
		fmt.Sprintf("Ticket closed by <@%s>\nResolution notes: %s", ev.Actor.ID, reason), false); err != nil {
		s.logger.Warn("close announcement failed", zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketClosed,
		GuildID:      ticket.GuildID,
		ChannelID:    ev.ChannelID,
		TicketNumber: ticket.TicketNumber,
		ActorID:      ev.Actor.ID,
		Payload:      events.TicketClosedPayload{ClosedBy: ev.Actor.ID, Reason: reason},
	})

	// Archive strictly before scheduling deletion so a failed delete
	// can never lose the transcript.
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("settings read failed during close", zap.Error(err))
		settings = domain.DefaultSettings()
	}
	if settings.ArchiveChannelID != "" && s.archiver != nil {
		if err := s.archiver.Archive(ctx, ticket, settings.ArchiveChannelID); err != nil {
			s.logger.Warn("ticket archive failed",
				zap.Int("ticket_number", ticket.TicketNumber), zap.Error(err))
		}
	}

	channelID := ev.ChannelID
	s.scheduler.Schedule(s.deleteDelay, func() {
		s.FinalizeDeletion(context.Background(), channelID)
	})
	return nil
}

// FinalizeDeletion deletes the channel of a closed ticket and removes
// the ticket from the store. If the delete fails the record stays so
// startup reconciliation can retry.
func (s *TicketService) FinalizeDeletion(ctx context.Context, channelID string) {
	s.mu.Lock()
	ticket, ok := s.tickets[channelID]
	s.mu.Unlock()
	if !ok || ticket.Status != domain.TicketStatusClosed {
		return
	}

	if err := s.gw.DeleteChannel(ctx, channelID); err != nil {
		s.logger.Warn("ticket channel delete failed",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	s.mu.Lock()
	delete(s.tickets, channelID)
	if err := s.store.Save(ctx, s.tickets); err != nil {
		s.logger.Error("persist after channel delete failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}
	s.mu.Unlock()

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketDeleted,
		GuildID:      ticket.GuildID,
		ChannelID:    channelID,
		TicketNumber: ticket.TicketNumber,
		Payload:      events.TicketDeletedPayload{Status: ticket.Status},
	})
}

// Reconcile repairs closed tickets left over from a restart that
// happened before their deferred deletion fired: gone channels are
// dropped from the store, surviving ones get their deletion
// re-scheduled immediately.
func (s *TicketService) Reconcile(ctx context.Context) {
	s.mu.Lock()
	closed := make([]string, 0)
	for channelID, t := range s.tickets {
		if t.Status == domain.TicketStatusClosed {
			closed = append(closed, channelID)
		}
	}
	s.mu.Unlock()

	for _, channelID := range closed {
		exists, err := s.gw.ChannelExists(ctx, channelID)
		if err != nil {
			s.logger.Warn("reconcile channel check failed",
				zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		if !exists {
			s.mu.Lock()
			delete(s.tickets, channelID)
			if err := s.store.Save(ctx, s.tickets); err != nil {
				s.logger.Error("reconcile persist failed", zap.Error(err))
			}
			s.mu.Unlock()
			continue
		}
		id := channelID
		s.scheduler.Schedule(0, func() {
			s.FinalizeDeletion(context.Background(), id)
		})
	}
}

// Ticket returns a copy of the ticket for a channel.
func (s *TicketService) Ticket(channelID string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[channelID]
	return t, ok
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
