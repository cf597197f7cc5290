package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/support-bot/internal/intake"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/pkg/util"
)

// immediateScheduler runs scheduled work synchronously so tests can
// observe the post-close deletion without sleeping.
type immediateScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *immediateScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	s.delays = append(s.delays, delay)
	s.mu.Unlock()
	fn()
}

// flakyTicketStore fails Save on demand to exercise rollback paths.
type flakyTicketStore struct {
	repository.TicketStore
	failSave bool
}

func (s *flakyTicketStore) Save(ctx context.Context, tickets map[string]domain.Ticket) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.TicketStore.Save(ctx, tickets)
}

type fixture struct {
	svc       *TicketService
	gw        *gatewaytest.Fake
	store     *flakyTicketStore
	settings  repository.SettingsStore
	intake    intake.Store
	scheduler *immediateScheduler
	published *[]events.Event
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	store := &flakyTicketStore{
		TicketStore: repository.NewFileTicketStore(filepath.Join(dir, "tickets.json"), logger),
	}
	settings := repository.NewFileSettingsStore(filepath.Join(dir, "config.json"), logger)
	if err := settings.Set(context.Background(), domain.Settings{
		StaffRoleIDs:     []string{"role-staff"},
		ArchiveChannelID: "chan-archive",
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	gw := gatewaytest.New()
	gw.Roles = []gateway.Role{
		{ID: "role-staff", Name: "Support", Position: 5},
		{ID: "role-other", Name: "Member", Position: 1},
	}

	published := &[]events.Event{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketClaimed,
		events.EventTicketClosed, events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(et, func(_ context.Context, ev events.Event) error {
			*published = append(*published, ev)
			return nil
		})
	}

	scheduler := &immediateScheduler{}
	svc, err := NewTicketService(context.Background(), TicketDependencies{
		Store:       store,
		Settings:    settings,
		Intake:      intake.NewMemoryStore(),
		Gateway:     gw,
		Dispatcher:  dispatcher,
		Archiver:    NewArchiveService(gw, logger, 100, 1000),
		Scheduler:   scheduler,
		Logger:      logger,
		DeleteDelay: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewTicketService: %v", err)
	}

	return &fixture{
		svc:       svc,
		gw:        gw,
		store:     store,
		settings:  settings,
		intake:    svc.intake,
		scheduler: scheduler,
		published: published,
		dir:       dir,
	}
}

func requester(channelID string) gateway.Base {
	return gateway.Base{
		InteractionID: "ix-1",
		GuildID:       "guild-1",
		ChannelID:     channelID,
		Actor:         gateway.Actor{ID: "user-1", DisplayName: "Héllo Wörld"},
	}
}

func staff(channelID string) gateway.Base {
	return gateway.Base{
		InteractionID: "ix-2",
		GuildID:       "guild-1",
		ChannelID:     channelID,
		Actor:         gateway.Actor{ID: "staff-1", DisplayName: "Agent", RoleIDs: []string{"role-staff"}},
	}
}

// createTicket drives the full intake flow and returns the new
// channel ID.
func createTicket(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "MyWorld", Service: "Dragon Lore", Amount: "3",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if err := f.svc.CompleteIntake(ctx, &gateway.RoleSelected{
		Base: requester(""), RoleID: "role-staff",
	}); err != nil {
		t.Fatalf("CompleteIntake: %v", err)
	}
	ticketMsg := f.gw.Messages[len(f.gw.Messages)-1]
	return ticketMsg.ChannelID
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("want error with code %s, got nil", code)
	}
	if got := util.ToDomainError(err).Code; got != code {
		t.Fatalf("want error code %s, got %s (%v)", code, got, err)
	}
}

func TestTicketLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	channelID := createTicket(t, f)

	ticket, ok := f.svc.Ticket(channelID)
	if !ok {
		t.Fatalf("ticket not recorded for %s", channelID)
	}
	if ticket.TicketNumber != 1 {
		t.Errorf("ticket number = %d, want 1", ticket.TicketNumber)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want open", ticket.Status)
	}
	if ticket.ClaimedBy != nil {
		t.Errorf("new ticket already claimed by %v", *ticket.ClaimedBy)
	}

	ch := f.gw.Channels[channelID]
	if ch.Spec.Name != "ticket-dragon-lore-hello-world" {
		t.Errorf("channel name = %q", ch.Spec.Name)
	}
	wantOverrides := map[gateway.OverrideKind]bool{
		gateway.OverrideEveryone: false,
		gateway.OverrideUser:     true,
		gateway.OverrideRole:     true,
	}
	for _, ov := range ch.Spec.Overrides {
		view, ok := wantOverrides[ov.Kind]
		if !ok || ov.View != view {
			t.Errorf("unexpected override %+v", ov)
		}
		delete(wantOverrides, ov.Kind)
	}
	if len(wantOverrides) != 0 {
		t.Errorf("missing overrides: %v", wantOverrides)
	}

	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	ticket, _ = f.svc.Ticket(channelID)
	if ticket.Status != domain.TicketStatusInProgress || !ticket.Claimed() {
		t.Fatalf("after claim: status=%s claimedBy=%v", ticket.Status, ticket.ClaimedBy)
	}
	if got := f.gw.Channels[channelID].Name; got != "ticket-dragon-lore-agent" {
		t.Errorf("renamed channel = %q", got)
	}

	if err := f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{
		Base: staff(channelID), Reason: "all done",
	}); err != nil {
		t.Fatalf("SubmitClose: %v", err)
	}

	// Archive posted before the (immediate) deletion ran.
	var archived bool
	for _, sent := range f.gw.Messages {
		if sent.ChannelID == "chan-archive" && strings.Contains(sent.Message.Content, "Ticket #1") {
			archived = true
		}
	}
	if !archived {
		t.Error("archive summary not posted")
	}

	if !f.gw.Channels[channelID].Deleted {
		t.Error("ticket channel not deleted")
	}
	if _, ok := f.svc.Ticket(channelID); ok {
		t.Error("ticket record survived deletion")
	}
	if got := f.scheduler.delays[len(f.scheduler.delays)-1]; got != 10*time.Second {
		t.Errorf("deletion delay = %v, want 10s", got)
	}

	var types []events.EventType
	for _, ev := range *f.published {
		types = append(types, ev.Type)
	}
	want := []events.EventType{
		events.EventTicketCreated, events.EventTicketClaimed,
		events.EventTicketClosed, events.EventTicketDeleted,
	}
	if len(types) != len(want) {
		t.Fatalf("published events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("published events = %v, want %v", types, want)
		}
	}
}

func TestCompleteIntakeWithoutPending(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CompleteIntake(context.Background(), &gateway.RoleSelected{
		Base: requester(""), RoleID: "role-staff",
	})
	wantCode(t, err, "MISSING_INTAKE")
}

func TestCounterSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	createTicket(t, f)
	createTicket(t, f)

	restarted, err := NewTicketService(context.Background(), TicketDependencies{
		Store:     f.store,
		Settings:  f.settings,
		Intake:    intake.NewMemoryStore(),
		Gateway:   f.gw,
		Scheduler: f.scheduler,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}

	ctx := context.Background()
	if err := restarted.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "w", Service: "s", Amount: "1",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if err := restarted.CompleteIntake(ctx, &gateway.RoleSelected{Base: requester("")}); err != nil {
		t.Fatalf("CompleteIntake: %v", err)
	}

	channelID := f.gw.Messages[len(f.gw.Messages)-1].ChannelID
	ticket, _ := restarted.Ticket(channelID)
	if ticket.TicketNumber != 3 {
		t.Errorf("ticket number after restart = %d, want 3", ticket.TicketNumber)
	}
}

func TestClaimRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channelID := createTicket(t, f)

	notStaff := staff(channelID)
	notStaff.Actor.RoleIDs = nil
	wantCode(t, f.svc.Claim(ctx, &gateway.ClaimClicked{Base: notStaff}), "NOT_STAFF")

	wantCode(t, f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff("chan-nope")}), "INVALID_TICKET_CHANNEL")

	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second := staff(channelID)
	second.Actor.ID = "staff-2"
	err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: second})
	wantCode(t, err, "ALREADY_CLAIMED")
	if !strings.Contains(err.Error(), "<@staff-1>") {
		t.Errorf("claim error does not name claimer: %v", err)
	}
}

func TestCloseGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channelID := createTicket(t, f)

	wantCode(t, f.svc.RequestClose(ctx, &gateway.CloseClicked{Base: staff(channelID)}), "NOT_CLAIMED")

	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	other := staff(channelID)
	other.Actor.ID = "staff-2"
	wantCode(t, f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{Base: other}), "WRONG_CLAIMER")

	admin := other
	admin.Actor.IsAdmin = true
	if err := f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{Base: admin}); err != nil {
		t.Fatalf("admin close: %v", err)
	}

	wantCode(t, f.svc.RequestClose(ctx, &gateway.CloseClicked{Base: staff("chan-nope")}), "INVALID_TICKET_CHANNEL")
}

func TestSubmitCloseDefaultReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channelID := createTicket(t, f)
	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Keep the channel so the closed record is inspectable.
	f.gw.FailDelete = true
	if err := f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{Base: staff(channelID)}); err != nil {
		t.Fatalf("SubmitClose: %v", err)
	}
	ticket, _ := f.svc.Ticket(channelID)
	if ticket.CloseReason != "No reason provided" {
		t.Errorf("close reason = %q", ticket.CloseReason)
	}
	if ticket.ClosedBy == nil || *ticket.ClosedBy != "staff-1" || ticket.ClosedAt == nil {
		t.Errorf("closed fields not set: %+v", ticket)
	}
}

func TestCreateChannelFailureRestoresIntake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "w", Service: "s", Amount: "1",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	f.gw.FailCreate = true
	if err := f.svc.CompleteIntake(ctx, &gateway.RoleSelected{Base: requester("")}); err == nil {
		t.Fatal("want error when channel creation fails")
	}

	data, ok, err := f.intake.Take(ctx, "user-1")
	if err != nil || !ok {
		t.Fatalf("intake not restored: ok=%v err=%v", ok, err)
	}
	if data.Subject != "w" {
		t.Errorf("restored intake = %+v", data)
	}
}

func TestPersistFailureRollsBackNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "w", Service: "s", Amount: "1",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	f.store.failSave = true
	if err := f.svc.CompleteIntake(ctx, &gateway.RoleSelected{Base: requester("")}); err == nil {
		t.Fatal("want error when persist fails")
	}
	f.store.failSave = false

	// Failed creation burned no number and restored the intake: a
	// retried flow yields ticket #1.
	channelID := createTicket(t, f)
	ticket, _ := f.svc.Ticket(channelID)
	if ticket.TicketNumber != 1 {
		t.Errorf("ticket number after rollback = %d, want 1", ticket.TicketNumber)
	}
}

func TestFinalizeDeletionKeepsRecordOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channelID := createTicket(t, f)
	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	f.gw.FailDelete = true
	if err := f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{Base: staff(channelID), Reason: "x"}); err != nil {
		t.Fatalf("SubmitClose: %v", err)
	}
	if _, ok := f.svc.Ticket(channelID); !ok {
		t.Fatal("record dropped although channel delete failed")
	}

	// Next reconciliation pass retries and succeeds.
	f.gw.FailDelete = false
	f.svc.Reconcile(ctx)
	if _, ok := f.svc.Ticket(channelID); ok {
		t.Error("record survived successful retry")
	}
	if !f.gw.Channels[channelID].Deleted {
		t.Error("channel not deleted on retry")
	}
}

func TestReconcileDropsGoneChannels(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()
	store := repository.NewFileTicketStore(filepath.Join(dir, "tickets.json"), logger)

	closedBy := "staff-1"
	now := time.Now().UTC()
	if err := store.Save(context.Background(), map[string]domain.Ticket{
		"chan-gone": {
			TicketNumber: 7, ChannelID: "chan-gone", Status: domain.TicketStatusClosed,
			ClosedBy: &closedBy, ClosedAt: &now,
		},
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	gw := gatewaytest.New()
	svc, err := NewTicketService(context.Background(), TicketDependencies{
		Store:     store,
		Settings:  repository.NewFileSettingsStore(filepath.Join(dir, "config.json"), logger),
		Intake:    intake.NewMemoryStore(),
		Gateway:   gw,
		Scheduler: &immediateScheduler{},
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewTicketService: %v", err)
	}

	svc.Reconcile(context.Background())
	if _, ok := svc.Ticket("chan-gone"); ok {
		t.Error("ticket for deleted channel survived reconcile")
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("persisted tickets after reconcile = %v", loaded)
	}
}

func TestArchiveFailureStillDeletesChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channelID := createTicket(t, f)
	if err := f.svc.Claim(ctx, &gateway.ClaimClicked{Base: staff(channelID)}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	f.gw.FailHistory = true
	if err := f.svc.SubmitClose(ctx, &gateway.CloseSubmitted{Base: staff(channelID), Reason: "x"}); err != nil {
		t.Fatalf("SubmitClose: %v", err)
	}
	if !f.gw.Channels[channelID].Deleted {
		t.Error("archive failure blocked channel deletion")
	}
}

func TestStaffRoleMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.settings.Set(ctx, domain.Settings{
		StaffRoleIDs: []string{"role-a", "role-b", "role-managed"},
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	f.gw.Roles = []gateway.Role{
		{ID: "role-a", Name: "Junior", Position: 1},
		{ID: "role-b", Name: "Senior", Position: 9},
		{ID: "role-managed", Name: "Bot", Position: 20, Managed: true},
		{ID: "role-x", Name: "Unrelated", Position: 5},
	}

	if err := f.svc.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "w", Service: "s", Amount: "1",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	menu := f.gw.Menus[len(f.gw.Menus)-1]
	if menu.ID != MenuRoleSelect {
		t.Errorf("menu id = %q", menu.ID)
	}
	if len(menu.Options) != 2 {
		t.Fatalf("menu options = %+v", menu.Options)
	}
	if menu.Options[0].Value != "role-b" || menu.Options[1].Value != "role-a" {
		t.Errorf("options not sorted by position: %+v", menu.Options)
	}
}

func TestStaffRoleMenuFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.settings.Set(ctx, domain.Settings{StaffRoleIDs: []string{}}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	if err := f.svc.SubmitIntake(ctx, &gateway.IntakeSubmitted{
		Base: requester(""), Subject: "w", Service: "s", Amount: "1",
	}); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}

	menu := f.gw.Menus[len(f.gw.Menus)-1]
	if len(menu.Options) != 1 || menu.Options[0].Value != noRoleOption {
		t.Fatalf("fallback option missing: %+v", menu.Options)
	}
}
