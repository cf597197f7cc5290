// Package gateway defines the contract with the external messaging
// platform: the events it delivers and the channel/message operations
// the bot may ask of it. The bot never talks to the chat platform
// directly; a bridge process owns the real connection.
package gateway

import (
	"context"
	"time"
)

// OverrideKind selects what a channel visibility override targets.
type OverrideKind string

const (
	OverrideUser     OverrideKind = "user"
	OverrideRole     OverrideKind = "role"
	OverrideEveryone OverrideKind = "everyone"
)

// Override grants or denies channel visibility for one identity.
type Override struct {
	ID   string       `json:"id,omitempty"`
	Kind OverrideKind `json:"kind"`
	View bool         `json:"view"`
}

// ChannelSpec describes a private channel to create.
type ChannelSpec struct {
	GuildID   string     `json:"guild_id"`
	Name      string     `json:"name"`
	ParentID  string     `json:"parent_id,omitempty"`
	Topic     string     `json:"topic,omitempty"`
	Overrides []Override `json:"overrides"`
}

// Button is a clickable component attached to a message.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OutgoingMessage is a message the bot posts to a channel.
type OutgoingMessage struct {
	Content string   `json:"content"`
	Buttons []Button `json:"buttons,omitempty"`
}

// FormField is one input of a form shown to the actor.
type FormField struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
	MaxLength   int    `json:"max_length,omitempty"`
	Paragraph   bool   `json:"paragraph,omitempty"`
}

// Form is a modal presented to the interacting actor.
type Form struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// SelectOption is one entry of a select menu.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SelectMenu is a single-choice menu presented to the actor.
type SelectMenu struct {
	ID      string         `json:"id"`
	Options []SelectOption `json:"options"`
}

// Role describes a guild role as the gateway sees it.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`
}

// Message is one historical channel message.
type Message struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Bot        bool      `json:"bot"`
	Webhook    bool      `json:"webhook"`
}

// Gateway is the operation surface the lifecycle needs from the chat
// platform. Implementations may block on network I/O; all calls take
// a context.
type Gateway interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (channelID string, err error)
	RenameChannel(ctx context.Context, channelID, name string) error
	DeleteChannel(ctx context.Context, channelID string) error
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (messageID string, err error)
	ShowForm(ctx context.Context, interactionID string, form Form) error
	PromptSelect(ctx context.Context, interactionID, content string, menu SelectMenu) error
	Reply(ctx context.Context, interactionID, content string, ephemeral bool) error
	FetchMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
	GuildRoles(ctx context.Context, guildID string) ([]Role, error)
}
