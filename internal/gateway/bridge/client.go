package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/gateway"
)

// Handler consumes one inbound gateway event. Events are delivered
// sequentially from the read loop, which is what keeps the lifecycle's
// one-logical-task-at-a-time assumption true.
type Handler func(ctx context.Context, ev gateway.Event)

// Client is a websocket gateway.Gateway implementation.
type Client struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	timeout time.Duration

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame
}

var _ gateway.Gateway = (*Client)(nil)

// Dial connects to the bridge. Reconnect policy is owned by the
// bridge side; a dropped connection ends Run with an error.
func Dial(ctx context.Context, cfg config.GatewayConfig, logger *zap.Logger) (*Client, error) {
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway bridge %s: %w", cfg.URL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	logger.Info("connected to gateway bridge", zap.String("url", cfg.URL))
	return &Client{
		conn:    conn,
		logger:  logger,
		timeout: cfg.RequestTimeout(),
		pending: make(map[string]chan frame),
	}, nil
}

// Run reads frames until the connection or context ends. Response
// frames complete pending requests on the read loop itself; event
// frames are handed to a single worker goroutine so handlers are
// invoked strictly one at a time while their own gateway requests can
// still be answered.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	defer c.failPending()

	events := make(chan gateway.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			handler(ctx, ev)
		}
	}()
	defer func() {
		close(events)
		<-done
	}()

	for {
		var fr frame
		if err := c.conn.ReadJSON(&fr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gateway read: %w", err)
		}

		switch fr.Op {
		case opEvent:
			ev, err := decodeEvent(fr.Type, fr.Data)
			if err != nil {
				c.logger.Warn("dropping undecodable gateway event",
					zap.String("type", fr.Type), zap.Error(err))
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case opResponse:
			c.complete(fr)
		default:
			c.logger.Warn("unexpected frame op", zap.String("op", fr.Op))
		}
	}
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) complete(fr frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[fr.ID]
	if ok {
		delete(c.pending, fr.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- fr
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// request sends one request frame and decodes its response into out
// (out may be nil for fire-and-confirm operations).
func (c *Client) request(ctx context.Context, method string, params any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	ch := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(frame{Op: opRequest, ID: id, Type: method, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return fmt.Errorf("gateway write %s: %w", method, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case fr, ok := <-ch:
		if !ok {
			return fmt.Errorf("gateway connection lost during %s", method)
		}
		if fr.Error != "" {
			return fmt.Errorf("gateway %s: %s", method, fr.Error)
		}
		if out != nil && len(fr.Data) > 0 {
			return json.Unmarshal(fr.Data, out)
		}
		return nil
	case <-timer.C:
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return fmt.Errorf("gateway %s: timeout after %s", method, c.timeout)
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ctx.Err()
	}
}

func (c *Client) CreateChannel(ctx context.Context, spec gateway.ChannelSpec) (string, error) {
	var res channelCreated
	if err := c.request(ctx, methodChannelCreate, spec, &res); err != nil {
		return "", err
	}
	return res.ChannelID, nil
}

func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	return c.request(ctx, methodChannelRename, renameParams{ChannelID: channelID, Name: name}, nil)
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.request(ctx, methodChannelDelete, channelParams{ChannelID: channelID}, nil)
}

func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	var res channelExistence
	if err := c.request(ctx, methodChannelExists, channelParams{ChannelID: channelID}, &res); err != nil {
		return false, err
	}
	return res.Exists, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg gateway.OutgoingMessage) (string, error) {
	var res messageSent
	if err := c.request(ctx, methodMessageSend, sendParams{ChannelID: channelID, Message: msg}, &res); err != nil {
		return "", err
	}
	return res.MessageID, nil
}

func (c *Client) ShowForm(ctx context.Context, interactionID string, form gateway.Form) error {
	return c.request(ctx, methodFormShow, formParams{InteractionID: interactionID, Form: form}, nil)
}

func (c *Client) PromptSelect(ctx context.Context, interactionID, content string, menu gateway.SelectMenu) error {
	return c.request(ctx, methodSelectPrompt, selectParams{InteractionID: interactionID, Content: content, Menu: menu}, nil)
}

func (c *Client) Reply(ctx context.Context, interactionID, content string, ephemeral bool) error {
	return c.request(ctx, methodReply, replyParams{InteractionID: interactionID, Content: content, Ephemeral: ephemeral}, nil)
}

func (c *Client) FetchMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]gateway.Message, error) {
	var res historyPage
	params := historyParams{ChannelID: channelID, BeforeID: beforeID, Limit: limit}
	if err := c.request(ctx, methodMessageHistory, params, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]gateway.Role, error) {
	var res rolesResult
	if err := c.request(ctx, methodGuildRoles, guildParams{GuildID: guildID}, &res); err != nil {
		return nil, err
	}
	return res.Roles, nil
}
