package irc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNew(t *testing.T) {
	cfg := config.IRCConfig{
		Server:   "irc.libera.chat",
		Port:     6697,
		Nick:     "scribe",
		Channels: []string{"#dialogs"},
		UseTLS:   true,
	}
	ch := New(cfg, testLogger())
	assert.Equal(t, "irc", ch.ID())
}

func TestStatus_NotStarted(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	status := ch.Status()

	assert.Equal(t, "irc", status.ChannelID)
	assert.False(t, status.Connected)
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
}

func TestOnMessage(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())

	var received domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) {
		received = msg
	})

	ch.deliverInbound("alice", "#dialogs", domain.ChatTypeGroup, "hello")

	assert.Equal(t, "irc", received.ChannelID)
	assert.Equal(t, "alice", received.From)
	assert.Equal(t, "#dialogs", received.ChatID)
	assert.Equal(t, domain.ChatTypeGroup, received.ChatType)
	assert.Equal(t, "hello", received.Body)
	assert.NotEmpty(t, received.ID)
	assert.False(t, received.Timestamp.IsZero())
}

func TestDeliverInbound_NoHandlerIsSafe(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	// Must not panic without a handler registered.
	ch.deliverInbound("alice", "#dialogs", domain.ChatTypeGroup, "hello")
}

func TestSend_NotConnected(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	err := ch.Send(context.Background(), domain.OutboundMessage{To: "#dialogs", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestStop_BeforeStart(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	assert.NoError(t, ch.Stop(context.Background()))
}

func TestStart_CancelledContext(t *testing.T) {
	cfg := config.IRCConfig{
		Server:   "127.0.0.1",
		Port:     1, // nothing listens here
		Nick:     "scribe",
		Channels: []string{"#dialogs"},
	}
	ch := New(cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := ch.Start(ctx)
	assert.Error(t, err)
	assert.False(t, ch.Status().Running)
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want []string
	}{
		{"short", "hello", 400, []string{"hello"}},
		{"newlines", "a\nb", 400, []string{"a", "b"}},
		{"long line", "aaaaaa", 4, []string{"aaaa", "aa"}},
		{"empty", "", 400, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitMessage(tt.in, tt.max))
		})
	}
}
