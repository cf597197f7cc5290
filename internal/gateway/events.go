package gateway

// Actor identifies the user behind an interaction, with the role and
// permission context the lifecycle guards need.
type Actor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	RoleIDs     []string `json:"role_ids"`
	IsAdmin     bool     `json:"is_admin"`
}

// Base carries the fields every interaction event has in common.
type Base struct {
	InteractionID string `json:"interaction_id"`
	GuildID       string `json:"guild_id"`
	ChannelID     string `json:"channel_id"`
	Actor         Actor  `json:"actor"`
}

func (Base) isEvent() {}

// Event is the closed set of interactions the bot consumes. Dispatch
// is an exhaustive type switch; adding a variant forces every switch
// to be revisited.
type Event interface {
	isEvent()
}

// PanelButton fires when a button on the setup panel is clicked.
type PanelButton struct {
	Base
	Button string `json:"button"`
}

// Panel button identifiers.
const (
	ButtonCreateTicket = "create_ticket"
	ButtonPriceService = "price_service"
	ButtonPriceLock    = "price_lock"
	ButtonClaimTicket  = "claim_ticket"
	ButtonCloseTicket  = "close_ticket"
)

// IntakeSubmitted fires when the ticket intake form is submitted.
type IntakeSubmitted struct {
	Base
	Subject string `json:"subject"`
	Service string `json:"service"`
	Amount  string `json:"amount"`
}

// RoleSelected fires when the requester picks a staff role to notify.
type RoleSelected struct {
	Base
	RoleID string `json:"role_id"`
}

// ClaimClicked fires when a staff member clicks claim inside a ticket
// channel.
type ClaimClicked struct {
	Base
}

// CloseClicked fires when the close button is clicked; it only opens
// the close-reason form.
type CloseClicked struct {
	Base
}

// CloseSubmitted fires when the close-reason form is submitted.
type CloseSubmitted struct {
	Base
	Reason string `json:"reason"`
}

// TextCommand fires for a prefix text command in any channel.
type TextCommand struct {
	Base
	Content string `json:"content"`
}
