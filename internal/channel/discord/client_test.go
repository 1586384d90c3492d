package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

type mockSession struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	sent     []string
	handlers []interface{}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, channelID+": "+content)
	return &discordgo.Message{}, nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {}
}

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func startedChannel(t *testing.T, cfg config.DiscordConfig) (*Channel, *mockSession) {
	t.Helper()
	sess := &mockSession{}
	ch := newWithSession(cfg, sess, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ch.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sess.mu.Lock()
		opened := sess.opened
		sess.mu.Unlock()
		if opened {
			return ch, sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never opened")
	return nil, nil
}

func messageCreate(userID, username, channelID, guildID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			Author:    &discordgo.User{ID: userID, Username: username},
			ChannelID: channelID,
			GuildID:   guildID,
			Content:   content,
		},
	}
}

func TestNew(t *testing.T) {
	ch := New(config.DiscordConfig{Token: "tok"}, testLogger())
	assert.Equal(t, "discord", ch.ID())
	assert.False(t, ch.Status().Connected)
}

func TestHandleMessage_Delivers(t *testing.T) {
	ch, _ := startedChannel(t, config.DiscordConfig{Token: "tok"})

	var received domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) { received = msg })

	ch.handleMessage(messageCreate("1", "alice", "chan-1", "guild-1", "hello"))

	assert.Equal(t, "discord", received.ChannelID)
	assert.Equal(t, "alice", received.From)
	assert.Equal(t, "chan-1", received.ChatID)
	assert.Equal(t, domain.ChatTypeGroup, received.ChatType)
	assert.Equal(t, "hello", received.Body)
}

func TestHandleMessage_DMChatType(t *testing.T) {
	ch, _ := startedChannel(t, config.DiscordConfig{Token: "tok"})

	var received domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) { received = msg })

	ch.handleMessage(messageCreate("1", "alice", "dm-1", "", "psst"))
	assert.Equal(t, domain.ChatTypeDM, received.ChatType)
}

func TestHandleMessage_FiltersSelfAndBots(t *testing.T) {
	ch, _ := startedChannel(t, config.DiscordConfig{Token: "tok"})
	ch.mu.Lock()
	ch.botUserID = "bot-1"
	ch.mu.Unlock()

	var count int
	ch.OnMessage(func(msg domain.InboundMessage) { count++ })

	ch.handleMessage(messageCreate("bot-1", "scribe", "chan-1", "guild-1", "own message"))

	bot := messageCreate("2", "otherbot", "chan-1", "guild-1", "beep")
	bot.Author.Bot = true
	ch.handleMessage(bot)

	assert.Zero(t, count)
}

func TestHandleMessage_ChannelAllowlist(t *testing.T) {
	ch, _ := startedChannel(t, config.DiscordConfig{Token: "tok", Channels: []string{"chan-allowed"}})

	var count int
	ch.OnMessage(func(msg domain.InboundMessage) { count++ })

	ch.handleMessage(messageCreate("1", "alice", "chan-other", "guild-1", "ignored"))
	assert.Zero(t, count)

	ch.handleMessage(messageCreate("1", "alice", "chan-allowed", "guild-1", "kept"))
	assert.Equal(t, 1, count)
}

func TestSend(t *testing.T) {
	ch, sess := startedChannel(t, config.DiscordConfig{Token: "tok"})

	require.NoError(t, ch.Send(context.Background(), domain.OutboundMessage{To: "chan-1", Body: "reply"}))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Len(t, sess.sent, 1)
	assert.Equal(t, "chan-1: reply", sess.sent[0])
}

func TestSend_NoTarget(t *testing.T) {
	ch, _ := startedChannel(t, config.DiscordConfig{Token: "tok"})
	assert.Error(t, ch.Send(context.Background(), domain.OutboundMessage{Body: "reply"}))
}

func TestStop_ClosesSession(t *testing.T) {
	ch, sess := startedChannel(t, config.DiscordConfig{Token: "tok"})

	require.NoError(t, ch.Stop(context.Background()))
	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.True(t, sess.closed)
	assert.False(t, ch.Status().Running)
}
