// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spec-kit/support-bot/internal/gateway"
)

// Channel is the fake's view of a created channel.
type Channel struct {
	ID      string
	Spec    gateway.ChannelSpec
	Name    string
	Deleted bool
}

// Sent records one SendMessage call.
type Sent struct {
	ChannelID string
	Message   gateway.OutgoingMessage
}

// Replied records one Reply call.
type Replied struct {
	InteractionID string
	Content       string
	Ephemeral     bool
}

// Fake implements gateway.Gateway against in-memory state. Zero value
// is usable; configure failure switches and history before use.
type Fake struct {
	mu sync.Mutex

	nextChannel int
	Channels    map[string]*Channel
	Messages    []Sent
	Replies     []Replied
	Forms       []gateway.Form
	Menus       []gateway.SelectMenu
	Roles       []gateway.Role

	// History holds channel messages newest-first, the order the real
	// gateway returns pages in.
	History map[string][]gateway.Message

	FailCreate  bool
	FailRename  bool
	FailDelete  bool
	FailSend    bool
	FailHistory bool
}

var _ gateway.Gateway = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Channels: make(map[string]*Channel),
		History:  make(map[string][]gateway.Message),
	}
}

func (f *Fake) CreateChannel(_ context.Context, spec gateway.ChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return "", errors.New("create refused")
	}
	f.nextChannel++
	id := fmt.Sprintf("chan-%d", f.nextChannel)
	f.Channels[id] = &Channel{ID: id, Spec: spec, Name: spec.Name}
	return id, nil
}

func (f *Fake) RenameChannel(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRename {
		return errors.New("rename refused")
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel %s", channelID)
	}
	ch.Name = name
	return nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete {
		return errors.New("delete refused")
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel %s", channelID)
	}
	ch.Deleted = true
	return nil
}

func (f *Fake) ChannelExists(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	return ok && !ch.Deleted, nil
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg gateway.OutgoingMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return "", errors.New("send refused")
	}
	f.Messages = append(f.Messages, Sent{ChannelID: channelID, Message: msg})
	return fmt.Sprintf("msg-%d", len(f.Messages)), nil
}

func (f *Fake) ShowForm(_ context.Context, _ string, form gateway.Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Forms = append(f.Forms, form)
	return nil
}

func (f *Fake) PromptSelect(_ context.Context, _ string, _ string, menu gateway.SelectMenu) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Menus = append(f.Menus, menu)
	return nil
}

func (f *Fake) Reply(_ context.Context, interactionID, content string, ephemeral bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies = append(f.Replies, Replied{InteractionID: interactionID, Content: content, Ephemeral: ephemeral})
	return nil
}

func (f *Fake) FetchMessagesBefore(_ context.Context, channelID, beforeID string, limit int) ([]gateway.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailHistory {
		return nil, errors.New("history refused")
	}
	all := f.History[channelID]
	start := 0
	if beforeID != "" {
		start = len(all)
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return nil, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := make([]gateway.Message, end-start)
	copy(page, all[start:end])
	return page, nil
}

func (f *Fake) GuildRoles(_ context.Context, _ string) ([]gateway.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := make([]gateway.Role, len(f.Roles))
	copy(roles, f.Roles)
	return roles, nil
}

// AddChannel seeds a channel without going through CreateChannel.
func (f *Fake) AddChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channels[id] = &Channel{ID: id, Name: id}
}

// LastReply returns the most recent Reply, if any.
func (f *Fake) LastReply() (Replied, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Replies) == 0 {
		return Replied{}, false
	}
	return f.Replies[len(f.Replies)-1], true
}
