package channel

import (
	"strings"

	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
	"github.com/soyeahso/dialogs/internal/recorder"
)

// Command is a recognized bot command.
type Command string

const (
	CmdNone   Command = ""
	CmdRecord Command = "record"
	CmdPause  Command = "pause"
	CmdResume Command = "resume"
	CmdStop   Command = "stop"
	CmdHelp   Command = "help"
)

const helpText = "Commands: !record start a session, !pause, !resume, !stop. " +
	"While recording, everything said in this chat is saved."

// ParseCommand extracts a bot command from a message body. Commands are
// a leading "!" word; anything else is plain text.
func ParseCommand(body string) Command {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "!") {
		return CmdNone
	}
	word, _, _ := strings.Cut(trimmed[1:], " ")
	switch strings.ToLower(word) {
	case "record", "start":
		return CmdRecord
	case "pause":
		return CmdPause
	case "resume":
		return CmdResume
	case "stop":
		return CmdStop
	case "help":
		return CmdHelp
	default:
		return CmdNone
	}
}

// Router translates inbound chat traffic into recorder operations. One
// router serves all channels; the operator key keeps them apart.
type Router struct {
	rec *recorder.Recorder
	log *logging.Logger
}

// NewRouter creates a command router over the recorder.
func NewRouter(rec *recorder.Recorder, log *logging.Logger) *Router {
	return &Router{rec: rec, log: log.Sub("commands")}
}

// Handle processes one inbound message and returns the reply to send
// back, or "" when the bot should stay silent.
func (r *Router) Handle(msg domain.InboundMessage) string {
	key := recorder.OperatorKey(msg.ChannelID, msg.From)

	var reply string
	var err error
	switch ParseCommand(msg.Body) {
	case CmdRecord:
		reply, err = r.rec.Start(key)
	case CmdPause:
		reply, err = r.rec.Pause(key)
	case CmdResume:
		reply, err = r.rec.Resume(key)
	case CmdStop:
		reply, err = r.rec.Stop(key)
	case CmdHelp:
		reply = helpText
	default:
		reply, err = r.rec.HandleText(key, msg)
	}

	if err != nil {
		r.log.Error().Err(err).Str("operator", key).Str("chat", msg.ChatID).Msg("command failed")
		return "Something went wrong, that didn't get saved. Try again."
	}
	return reply
}
