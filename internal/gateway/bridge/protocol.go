// Package bridge implements the gateway contract over a websocket
// connection to the bridge process fronting the chat platform.
//
// The wire format is JSON frames. The bridge pushes "event" frames;
// the bot issues "request" frames and matches "response" frames back
// by ID.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/spec-kit/support-bot/internal/gateway"
)

// Frame ops.
const (
	opEvent    = "event"
	opRequest  = "request"
	opResponse = "response"
)

// Request methods understood by the bridge.
const (
	methodChannelCreate  = "channel.create"
	methodChannelRename  = "channel.rename"
	methodChannelDelete  = "channel.delete"
	methodChannelExists  = "channel.exists"
	methodMessageSend    = "message.send"
	methodMessageHistory = "message.history"
	methodFormShow       = "form.show"
	methodSelectPrompt   = "select.prompt"
	methodReply          = "reply"
	methodGuildRoles     = "guild.roles"
)

// Event type tags on inbound event frames.
const (
	eventPanelButton    = "panel_button"
	eventIntakeSubmit   = "intake_submitted"
	eventRoleSelected   = "role_selected"
	eventClaimClicked   = "claim_clicked"
	eventCloseClicked   = "close_clicked"
	eventCloseSubmitted = "close_form_submitted"
	eventTextCommand    = "text_command"
)

type frame struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type renameParams struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

type channelParams struct {
	ChannelID string `json:"channel_id"`
}

type sendParams struct {
	ChannelID string                  `json:"channel_id"`
	Message   gateway.OutgoingMessage `json:"message"`
}

type historyParams struct {
	ChannelID string `json:"channel_id"`
	BeforeID  string `json:"before_id,omitempty"`
	Limit     int    `json:"limit"`
}

type formParams struct {
	InteractionID string       `json:"interaction_id"`
	Form          gateway.Form `json:"form"`
}

type selectParams struct {
	InteractionID string             `json:"interaction_id"`
	Content       string             `json:"content"`
	Menu          gateway.SelectMenu `json:"menu"`
}

type replyParams struct {
	InteractionID string `json:"interaction_id"`
	Content       string `json:"content"`
	Ephemeral     bool   `json:"ephemeral"`
}

type guildParams struct {
	GuildID string `json:"guild_id"`
}

type channelCreated struct {
	ChannelID string `json:"channel_id"`
}

type channelExistence struct {
	Exists bool `json:"exists"`
}

type messageSent struct {
	MessageID string `json:"message_id"`
}

type historyPage struct {
	Messages []gateway.Message `json:"messages"`
}

type rolesResult struct {
	Roles []gateway.Role `json:"roles"`
}

// decodeEvent maps an inbound event frame onto the closed event union.
func decodeEvent(typ string, data json.RawMessage) (gateway.Event, error) {
	switch typ {
	case eventPanelButton:
		var ev gateway.PanelButton
		return &ev, json.Unmarshal(data, &ev)
	case eventIntakeSubmit:
		var ev gateway.IntakeSubmitted
		return &ev, json.Unmarshal(data, &ev)
	case eventRoleSelected:
		var ev gateway.RoleSelected
		return &ev, json.Unmarshal(data, &ev)
	case eventClaimClicked:
		var ev gateway.ClaimClicked
		return &ev, json.Unmarshal(data, &ev)
	case eventCloseClicked:
		var ev gateway.CloseClicked
		return &ev, json.Unmarshal(data, &ev)
	case eventCloseSubmitted:
		var ev gateway.CloseSubmitted
		return &ev, json.Unmarshal(data, &ev)
	case eventTextCommand:
		var ev gateway.TextCommand
		return &ev, json.Unmarshal(data, &ev)
	default:
		return nil, fmt.Errorf("unknown event type %q", typ)
	}
}
