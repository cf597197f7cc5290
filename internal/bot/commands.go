package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/pkg/util"
)

// handleCommand parses and executes a prefix text command. These are
// the thin text equivalents of the interaction flows plus the admin
// configuration commands.
func (r *Router) handleCommand(ctx context.Context, ev *gateway.TextCommand) error {
	content := strings.TrimSpace(ev.Content)
	if !strings.HasPrefix(content, r.prefix) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(content, r.prefix))
	if len(fields) == 0 {
		return nil
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "setup":
		if err := requireAdmin(ev.Actor); err != nil {
			return err
		}
		if err := r.tickets.PostPanel(ctx, ev.ChannelID); err != nil {
			return util.NewInternalError(err)
		}
		if err := r.settings.SetSetupChannel(ctx, ev.ChannelID); err != nil {
			return util.NewInternalError(err)
		}
		return r.reply(ctx, ev, "Ticket panel posted.")

	case "claim":
		return r.tickets.Claim(ctx, &gateway.ClaimClicked{Base: ev.Base})

	case "close":
		return r.tickets.RequestClose(ctx, &gateway.CloseClicked{Base: ev.Base})

	case "setcategory":
		return r.adminSet(ctx, ev, args, "category", r.settings.SetTicketCategory)

	case "setlog":
		return r.adminSet(ctx, ev, args, "log channel", r.settings.SetLogChannel)

	case "setarchive":
		return r.adminSet(ctx, ev, args, "archive channel", r.settings.SetArchiveChannel)

	case "setpriceservice":
		return r.adminSet(ctx, ev, args, "price service channel", r.settings.SetPriceServiceChannel)

	case "setpricelock":
		return r.adminSet(ctx, ev, args, "price lock channel", r.settings.SetPriceLockChannel)

	case "addstaffrole":
		return r.adminSetRole(ctx, ev, args, "staff role added", r.settings.AddStaffRole)

	case "removestaffrole":
		return r.adminSetRole(ctx, ev, args, "staff role removed", r.settings.RemoveStaffRole)

	default:
		// Not our command; other bots may share the prefix.
		return nil
	}
}

func (r *Router) adminSet(ctx context.Context, ev *gateway.TextCommand, args []string, what string, set func(context.Context, string) error) error {
	if err := requireAdmin(ev.Actor); err != nil {
		return err
	}
	id, ok := channelRef(args)
	if !ok {
		return util.NewValidationError(fmt.Sprintf("Usage: %s%s #channel", r.prefix, commandName(what)), nil)
	}
	if err := set(ctx, id); err != nil {
		return err
	}
	return r.reply(ctx, ev, fmt.Sprintf("The %s is now <#%s>", what, id))
}

func (r *Router) adminSetRole(ctx context.Context, ev *gateway.TextCommand, args []string, done string, set func(context.Context, string) error) error {
	if err := requireAdmin(ev.Actor); err != nil {
		return err
	}
	id, ok := roleRef(args)
	if !ok {
		return util.NewValidationError("A role mention or ID is required.", nil)
	}
	if err := set(ctx, id); err != nil {
		return err
	}
	return r.reply(ctx, ev, fmt.Sprintf("Done: %s (<@&%s>)", done, id))
}

func (r *Router) reply(ctx context.Context, ev *gateway.TextCommand, content string) error {
	return r.gw.Reply(ctx, ev.InteractionID, content, true)
}

func requireAdmin(actor gateway.Actor) error {
	if !actor.IsAdmin {
		return util.NewPermissionError("NOT_ADMIN", "You need administrator permission for this command.")
	}
	return nil
}

// channelRef accepts "<#123>" mentions or raw IDs.
func channelRef(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	return stripRef(args[0], "<#", ">")
}

// roleRef accepts "<@&123>" mentions or raw IDs.
func roleRef(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	return stripRef(args[0], "<@&", ">")
}

func stripRef(arg, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(arg, prefix) && strings.HasSuffix(arg, suffix) {
		arg = strings.TrimSuffix(strings.TrimPrefix(arg, prefix), suffix)
	}
	if arg == "" {
		return "", false
	}
	return arg, true
}

func commandName(what string) string {
	return "set" + strings.ReplaceAll(strings.TrimSuffix(what, " channel"), " ", "")
}
