// Package discord implements the Discord chat channel using the Gateway
// WebSocket via discordgo.
package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Channel implements domain.Channel for Discord. Like the IRC channel it
// forwards every message it sees on the configured channels; the
// recorder decides what is on the record.
type Channel struct {
	cfg  config.DiscordConfig
	sess session
	log  *logging.Logger

	mu        sync.RWMutex
	handler   func(msg domain.InboundMessage)
	botUserID string
	running   bool
	connected bool
	lastErr   string
}

// New creates a Discord channel from configuration.
func New(cfg config.DiscordConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("discord"),
	}
}

// newWithSession injects a mock session for tests.
func newWithSession(cfg config.DiscordConfig, sess session, log *logging.Logger) *Channel {
	c := New(cfg, log)
	c.sess = sess
	return c
}

func (c *Channel) ID() string { return "discord" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "discord",
		Connected: c.connected,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start opens the Gateway connection and processes messages until ctx is
// cancelled. discordgo reconnects on its own after transient drops.
func (c *Channel) Start(ctx context.Context) error {
	if c.sess == nil {
		dg, err := discordgo.New("Bot " + c.cfg.Token)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent |
			discordgo.IntentsDirectMessages
		c.sess = &realSession{s: dg}
	}

	c.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.mu.Lock()
		c.botUserID = r.User.ID
		c.connected = true
		c.mu.Unlock()
		c.log.Info().Str("user", r.User.Username).Msg("connected to Discord")
	})
	c.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.log.Warn().Msg("gateway disconnected, discordgo will auto-reconnect")
	})
	c.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(m)
	})

	if err := c.sess.Open(); err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	c.mu.Lock()
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

// Stop closes the Gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.running = false
	c.connected = false
	sess := c.sess
	c.mu.Unlock()

	if sess != nil {
		c.log.Info().Msg("disconnecting from Discord")
		return sess.Close()
	}
	return nil
}

// Send delivers a reply to a Discord channel or DM.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if c.sess == nil {
		return fmt.Errorf("discord: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("discord: no target specified")
	}
	if _, err := c.sess.ChannelMessageSend(msg.To, msg.Body); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// handleMessage converts a Discord message event to an InboundMessage.
func (c *Channel) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	c.mu.RLock()
	botID := c.botUserID
	handler := c.handler
	c.mu.RUnlock()

	if m.Author.ID == botID || handler == nil {
		return
	}

	// When channels are configured, everything else is ignored.
	if len(c.cfg.Channels) > 0 && !slices.Contains(c.cfg.Channels, m.ChannelID) {
		return
	}

	chatType := domain.ChatTypeGroup
	if m.GuildID == "" {
		chatType = domain.ChatTypeDM
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	if ts.IsZero() {
		ts = time.Now()
	}

	// Usernames key the directory and the transcripts; the numeric id
	// only serves the self-filter above.
	handler(domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "discord",
		From:      m.Author.Username,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		ChatType:  chatType,
		Body:      m.Content,
		Timestamp: ts,
	})
}
