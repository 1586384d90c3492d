package liveview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
)

func msg(id int64, session, text string) directory.MessagePayload {
	return directory.MessagePayload{ID: id, SessionID: session, DisplayName: "Alice", Text: text}
}

func TestApplyMessage_AppendsInOrder(t *testing.T) {
	v := NewView()
	v.Open("session_1")

	assert.True(t, v.ApplyMessage(msg(1, "session_1", "one")))
	assert.True(t, v.ApplyMessage(msg(2, "session_1", "two")))

	msgs := v.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
}

func TestApplyMessage_DuplicatesAreIdempotent(t *testing.T) {
	v := NewView()
	v.Open("session_1")

	assert.True(t, v.ApplyMessage(msg(1, "session_1", "once")))
	for i := 0; i < 5; i++ {
		assert.False(t, v.ApplyMessage(msg(1, "session_1", "once")))
	}
	assert.Len(t, v.Messages(), 1)
}

func TestApplyMessage_IgnoresForeignSessions(t *testing.T) {
	v := NewView()
	v.Open("session_1")

	assert.False(t, v.ApplyMessage(msg(1, "session_2", "elsewhere")))
	assert.Empty(t, v.Messages())
}

func TestOpen_ResetsPaneAndDedup(t *testing.T) {
	v := NewView()
	v.Open("session_1")
	v.ApplyMessage(msg(1, "session_1", "old"))

	v.Open("session_2")
	assert.Empty(t, v.Messages())

	// Same id is fresh in the new session's pane.
	assert.True(t, v.ApplyMessage(msg(1, "session_2", "new")))
}

func TestReplaceMessages_SeedsDedup(t *testing.T) {
	v := NewView()
	v.Open("session_1")

	v.ReplaceMessages("session_1", []directory.MessagePayload{
		msg(1, "session_1", "a"), msg(2, "session_1", "b"),
	})
	assert.Len(t, v.Messages(), 2)

	// Events already covered by the fetch stay deduplicated.
	assert.False(t, v.ApplyMessage(msg(2, "session_1", "b")))
	assert.True(t, v.ApplyMessage(msg(3, "session_1", "c")))
}

func TestReplaceMessages_IgnoresStaleSession(t *testing.T) {
	v := NewView()
	v.Open("session_2")

	v.ReplaceMessages("session_1", []directory.MessagePayload{msg(1, "session_1", "late")})
	assert.Empty(t, v.Messages())
}

func TestApplySessionNew_InsertsAtTopOnce(t *testing.T) {
	v := NewView()
	v.SetSessions([]directory.SessionSummary{{ID: "session_old"}})

	assert.True(t, v.ApplySessionNew(directory.SessionSummary{ID: "session_new"}))
	sessions := v.Sessions()
	assert.Equal(t, "session_new", sessions[0].ID)
	assert.Equal(t, "session_old", sessions[1].ID)

	assert.False(t, v.ApplySessionNew(directory.SessionSummary{ID: "session_new"}))
	assert.Len(t, v.Sessions(), 2)
}

func TestApplySessionUpdate_PatchesInPlace(t *testing.T) {
	v := NewView()
	v.SetSessions([]directory.SessionSummary{
		{ID: "session_a", Status: domain.StatusActive},
		{ID: "session_b", Status: domain.StatusActive},
	})

	v.ApplySessionUpdate(directory.SessionSummary{ID: "session_b", Status: domain.StatusCompleted})

	sessions := v.Sessions()
	assert.Len(t, sessions, 2)
	assert.Equal(t, "session_a", sessions[0].ID)
	assert.Equal(t, domain.StatusCompleted, sessions[1].Status)
}

func TestApplySessionUpdate_UnknownSessionInsertsAtTop(t *testing.T) {
	v := NewView()
	v.SetSessions([]directory.SessionSummary{{ID: "session_a"}})

	v.ApplySessionUpdate(directory.SessionSummary{ID: "session_x"})
	assert.Equal(t, "session_x", v.Sessions()[0].ID)
}
