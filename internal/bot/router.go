// Package bot routes gateway events to the ticket lifecycle. It is
// the outermost handler boundary: panics and unexpected errors end
// here with a generic reply, never with a dead event loop.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/pkg/util"
)

// Router dispatches the closed gateway event union.
type Router struct {
	tickets  *service.TicketService
	settings *service.SettingsService
	gw       gateway.Gateway
	metrics  *observability.Metrics
	logger   *zap.Logger
	prefix   string
}

// RouterDependencies bundles router collaborators.
type RouterDependencies struct {
	Tickets  *service.TicketService
	Settings *service.SettingsService
	Gateway  gateway.Gateway
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Prefix   string
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	prefix := deps.Prefix
	if prefix == "" {
		prefix = "!"
	}
	return &Router{
		tickets:  deps.Tickets,
		settings: deps.Settings,
		gw:       deps.Gateway,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		prefix:   prefix,
	}
}

// Handle processes one gateway event. The switch is exhaustive over
// the event union; an unknown variant is a programming error surfaced
// in logs.
func (r *Router) Handle(ctx context.Context, ev gateway.Event) {
	kind, interactionID := describe(ev)
	r.metrics.RecordEvent(kind)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in event handler",
				zap.String("event", kind),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			r.replyError(ctx, interactionID, util.ToDomainError(util.NewInternalError(nil)), kind)
		}
	}()

	var err error
	switch ev := ev.(type) {
	case *gateway.PanelButton:
		err = r.handlePanelButton(ctx, ev)
	case *gateway.IntakeSubmitted:
		err = r.tickets.SubmitIntake(ctx, ev)
	case *gateway.RoleSelected:
		err = r.tickets.CompleteIntake(ctx, ev)
	case *gateway.ClaimClicked:
		err = r.tickets.Claim(ctx, ev)
	case *gateway.CloseClicked:
		err = r.tickets.RequestClose(ctx, ev)
	case *gateway.CloseSubmitted:
		err = r.tickets.SubmitClose(ctx, ev)
	case *gateway.TextCommand:
		err = r.handleCommand(ctx, ev)
	default:
		r.logger.Error("unhandled gateway event variant", zap.String("event", fmt.Sprintf("%T", ev)))
		return
	}

	if err != nil {
		r.replyError(ctx, interactionID, util.ToDomainError(err), kind)
	}
}

func (r *Router) handlePanelButton(ctx context.Context, ev *gateway.PanelButton) error {
	switch ev.Button {
	case gateway.ButtonCreateTicket:
		return r.tickets.BeginIntake(ctx, ev)
	case gateway.ButtonPriceService:
		return r.priceInfo(ctx, ev, "Price Service", func(s domain.Settings) string { return s.PriceServiceChannelID },
			fmt.Sprintf("The price service channel is not set. Use `%ssetpriceservice #channel`", r.prefix))
	case gateway.ButtonPriceLock:
		return r.priceInfo(ctx, ev, "Price Lock", func(s domain.Settings) string { return s.PriceLockChannelID },
			fmt.Sprintf("The price lock channel is not set. Use `%ssetpricelock #channel`", r.prefix))
	case gateway.ButtonClaimTicket:
		return r.tickets.Claim(ctx, &gateway.ClaimClicked{Base: ev.Base})
	case gateway.ButtonCloseTicket:
		return r.tickets.RequestClose(ctx, &gateway.CloseClicked{Base: ev.Base})
	default:
		r.logger.Warn("unknown panel button", zap.String("button", ev.Button))
		return nil
	}
}

func (r *Router) priceInfo(ctx context.Context, ev *gateway.PanelButton, label string, pick func(domain.Settings) string, hint string) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return util.NewInternalError(err)
	}
	channelID := pick(settings)
	if channelID == "" {
		return r.gw.Reply(ctx, ev.InteractionID, hint, true)
	}
	return r.gw.Reply(ctx, ev.InteractionID, fmt.Sprintf("%s: see <#%s>", label, channelID), true)
}

// replyError reports permission/precondition errors to the actor and
// hides internals behind a generic message.
func (r *Router) replyError(ctx context.Context, interactionID string, derr *util.DomainError, kind string) {
	r.metrics.RecordError(kind, derr.Code)
	if !derr.UserFacing() {
		r.logger.Error("event handler failed", zap.String("event", kind), zap.Error(derr))
	}

	if interactionID == "" {
		return
	}
	message := derr.Message
	if !derr.UserFacing() {
		message = "An error occurred. Please try again."
	}
	if err := r.gw.Reply(ctx, interactionID, message, true); err != nil {
		r.logger.Warn("error reply failed", zap.Error(err))
	}
}

func describe(ev gateway.Event) (kind, interactionID string) {
	switch ev := ev.(type) {
	case *gateway.PanelButton:
		return "panel_button:" + ev.Button, ev.InteractionID
	case *gateway.IntakeSubmitted:
		return "intake_submitted", ev.InteractionID
	case *gateway.RoleSelected:
		return "role_selected", ev.InteractionID
	case *gateway.ClaimClicked:
		return "claim_clicked", ev.InteractionID
	case *gateway.CloseClicked:
		return "close_clicked", ev.InteractionID
	case *gateway.CloseSubmitted:
		return "close_form_submitted", ev.InteractionID
	case *gateway.TextCommand:
		return "text_command", ev.InteractionID
	default:
		return fmt.Sprintf("%T", ev), ""
	}
}
