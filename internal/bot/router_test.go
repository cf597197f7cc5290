package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/support-bot/internal/intake"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
)

type routerFixture struct {
	router   *Router
	gw       *gatewaytest.Fake
	settings repository.SettingsStore
	metrics  *observability.Metrics
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	settings := repository.NewFileSettingsStore(filepath.Join(dir, "config.json"), logger)
	if err := settings.Set(context.Background(), domain.Settings{StaffRoleIDs: []string{"role-staff"}}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	gw := gatewaytest.New()
	gw.Roles = []gateway.Role{{ID: "role-staff", Name: "Support", Position: 3}}

	tickets, err := service.NewTicketService(context.Background(), service.TicketDependencies{
		Store:      repository.NewFileTicketStore(filepath.Join(dir, "tickets.json"), logger),
		Settings:   settings,
		Intake:     intake.NewMemoryStore(),
		Gateway:    gw,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewTicketService: %v", err)
	}

	metrics := observability.NewMetrics()
	router := NewRouter(RouterDependencies{
		Tickets:  tickets,
		Settings: service.NewSettingsService(settings),
		Gateway:  gw,
		Metrics:  metrics,
		Logger:   logger,
	})
	return &routerFixture{router: router, gw: gw, settings: settings, metrics: metrics}
}

func event(actor gateway.Actor, channelID string) gateway.Base {
	return gateway.Base{InteractionID: "ix-1", GuildID: "guild-1", ChannelID: channelID, Actor: actor}
}

var (
	member = gateway.Actor{ID: "user-1", DisplayName: "Alice"}
	admin  = gateway.Actor{ID: "admin-1", DisplayName: "Root", IsAdmin: true}
)

func TestRouterCreateTicketFlow(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.PanelButton{Base: event(member, "chan-setup"), Button: gateway.ButtonCreateTicket})
	if len(f.gw.Forms) != 1 || f.gw.Forms[0].ID != service.FormIntake {
		t.Fatalf("intake form not shown: %+v", f.gw.Forms)
	}

	f.router.Handle(ctx, &gateway.IntakeSubmitted{
		Base: event(member, "chan-setup"), Subject: "MyWorld", Service: "locks", Amount: "2",
	})
	if len(f.gw.Menus) != 1 {
		t.Fatalf("role menu not prompted: %+v", f.gw.Menus)
	}

	f.router.Handle(ctx, &gateway.RoleSelected{Base: event(member, "chan-setup"), RoleID: "role-staff"})
	if len(f.gw.Channels) != 1 {
		t.Fatalf("ticket channel not created: %+v", f.gw.Channels)
	}
	reply, ok := f.gw.LastReply()
	if !ok || !reply.Ephemeral || !strings.Contains(reply.Content, "has been created") {
		t.Errorf("creation reply = %+v", reply)
	}

	eventCounts, _ := f.metrics.Snapshot()
	if eventCounts["role_selected"] != 1 {
		t.Errorf("event counters = %v", eventCounts)
	}
}

func TestRouterRepliesUserFacingError(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), &gateway.ClaimClicked{Base: event(member, "chan-nope")})

	reply, ok := f.gw.LastReply()
	if !ok || !reply.Ephemeral {
		t.Fatalf("no ephemeral reply: %+v", reply)
	}
	if !strings.Contains(reply.Content, "permission to claim") {
		t.Errorf("reply = %q", reply.Content)
	}

	_, errorCounts := f.metrics.Snapshot()
	if errorCounts["claim_clicked|NOT_STAFF"] != 1 {
		t.Errorf("error counters = %v", errorCounts)
	}
}

func TestRouterHidesInternalErrors(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.IntakeSubmitted{
		Base: event(member, "chan-setup"), Subject: "w", Service: "s", Amount: "1",
	})
	f.gw.FailCreate = true
	f.router.Handle(ctx, &gateway.RoleSelected{Base: event(member, "chan-setup")})

	reply, ok := f.gw.LastReply()
	if !ok {
		t.Fatal("no reply on internal error")
	}
	if reply.Content != "An error occurred. Please try again." {
		t.Errorf("internal error leaked: %q", reply.Content)
	}
}

func TestRouterPriceButtons(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.PanelButton{Base: event(member, "chan-setup"), Button: gateway.ButtonPriceService})
	reply, _ := f.gw.LastReply()
	if !strings.Contains(reply.Content, "!setpriceservice") {
		t.Errorf("unset price channel hint = %q", reply.Content)
	}

	if err := f.settings.Set(ctx, domain.Settings{
		StaffRoleIDs:          []string{"role-staff"},
		PriceServiceChannelID: "chan-prices",
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	f.router.Handle(ctx, &gateway.PanelButton{Base: event(member, "chan-setup"), Button: gateway.ButtonPriceService})
	reply, _ = f.gw.LastReply()
	if !strings.Contains(reply.Content, "<#chan-prices>") {
		t.Errorf("price reply = %q", reply.Content)
	}
}

func TestCommandSetupRequiresAdmin(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(member, "chan-setup"), Content: "!setup"})
	if len(f.gw.Messages) != 0 {
		t.Fatalf("panel posted for non-admin: %+v", f.gw.Messages)
	}
	reply, _ := f.gw.LastReply()
	if !strings.Contains(reply.Content, "administrator permission") {
		t.Errorf("reply = %q", reply.Content)
	}
}

func TestCommandSetup(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: "!setup"})

	if len(f.gw.Messages) != 1 {
		t.Fatalf("panel messages = %+v", f.gw.Messages)
	}
	panel := f.gw.Messages[0]
	if panel.ChannelID != "chan-setup" || len(panel.Message.Buttons) != 3 {
		t.Errorf("panel = %+v", panel)
	}

	settings, err := f.settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get settings: %v", err)
	}
	if settings.SetupChannelID != "chan-setup" {
		t.Errorf("setup channel = %q", settings.SetupChannelID)
	}
}

func TestCommandSetCategory(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: "!setcategory <#cat-1>"})

	settings, err := f.settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get settings: %v", err)
	}
	if settings.TicketCategoryID != "cat-1" {
		t.Errorf("category = %q", settings.TicketCategoryID)
	}
	reply, _ := f.gw.LastReply()
	if !strings.Contains(reply.Content, "<#cat-1>") {
		t.Errorf("reply = %q", reply.Content)
	}
}

func TestCommandStaffRoles(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: "!addstaffrole <@&role-new>"})
	settings, _ := f.settings.Get(ctx)
	if !settings.HasStaffRole([]string{"role-new"}) {
		t.Errorf("staff roles after add = %v", settings.StaffRoleIDs)
	}

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: "!removestaffrole role-new"})
	settings, _ = f.settings.Get(ctx)
	if settings.HasStaffRole([]string{"role-new"}) {
		t.Errorf("staff roles after remove = %v", settings.StaffRoleIDs)
	}

	f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: "!removestaffrole role-ghost"})
	reply, _ := f.gw.LastReply()
	if !strings.Contains(reply.Content, "not found") {
		t.Errorf("remove unknown role reply = %q", reply.Content)
	}
}

func TestCommandIgnoresForeignTraffic(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	for _, content := range []string{"hello there", "!unknowncommand", "?setup", "!"} {
		f.router.Handle(ctx, &gateway.TextCommand{Base: event(admin, "chan-setup"), Content: content})
	}
	if len(f.gw.Replies) != 0 || len(f.gw.Messages) != 0 {
		t.Errorf("foreign traffic answered: replies=%+v messages=%+v", f.gw.Replies, f.gw.Messages)
	}
}
