package handlers

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"nightcircle/internal/logging"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/services"
	"nightcircle/internal/utils"
)

// Dispatcher routes inbound websocket frames to the services. Failures are
// reported to the originating connection only.
type Dispatcher struct {
	presence *services.PresenceService
	chat     *services.ChatService
	emitter  realtime.Emitter
}

func NewDispatcher(presence *services.PresenceService, chat *services.ChatService, emitter realtime.Emitter) *Dispatcher {
	return &Dispatcher{presence: presence, chat: chat, emitter: emitter}
}

type errorPayload struct {
	Error     string `json:"error"`
	Event     string `json:"event,omitempty"`
	LocalID   string `json:"localId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

type messageRef struct {
	MessageID string               `json:"messageId"`
	Status    models.MessageStatus `json:"status"`
	Emoji     models.Emoji         `json:"emoji"`
}

type groupRef struct {
	GroupID string `json:"groupId"`
}

type typingRef struct {
	ToUserID string `json:"toUserId"`
}

type pongPayload struct {
	Time int64 `json:"time"`
}

// Handle processes one inbound frame from c.
func (d *Dispatcher) Handle(ctx context.Context, c *realtime.Client, raw []byte) {
	if !c.Allow() {
		d.fail(c, realtime.EventError, errorPayload{Error: "rate limit exceeded"})
		return
	}

	var frame models.Frame
	if err := utils.SafeJSONParse(raw, &frame); err != nil || frame.Event == "" {
		d.fail(c, realtime.EventError, errorPayload{Error: "invalid frame"})
		return
	}

	switch frame.Event {
	case realtime.EventGroupSubscribe:
		var in groupRef
		if !d.decode(c, frame, &in, realtime.EventGroupSubscribeError) {
			return
		}
		// Subscribe reports its own outcome.
		if err := d.presence.Subscribe(ctx, c.ID, in.GroupID); err != nil {
			logging.Debug().Err(err).Str("conn_id", c.ID).Str("group_id", in.GroupID).Msg("subscribe rejected")
		}

	case realtime.EventGroupMessage:
		var in services.SendGroupInput
		if !d.decode(c, frame, &in, realtime.EventGroupMessageError) {
			return
		}
		in.SenderID, in.SenderConnID = c.UserID, c.ID
		if _, err := d.chat.SendGroup(ctx, in); err != nil {
			d.fail(c, realtime.EventGroupMessageError, errorPayload{Error: publicMessage(err), LocalID: in.LocalID})
		}

	case realtime.EventPrivateMessage:
		var in services.SendPrivateInput
		if !d.decode(c, frame, &in, realtime.EventPrivateMessageError) {
			return
		}
		in.SenderID, in.SenderConnID = c.UserID, c.ID
		if _, err := d.chat.SendPrivate(ctx, in); err != nil {
			d.fail(c, realtime.EventPrivateMessageError, errorPayload{Error: publicMessage(err), LocalID: in.LocalID})
		}

	case realtime.EventPrivateStatus:
		var in messageRef
		if !d.decode(c, frame, &in, realtime.EventMessageError) {
			return
		}
		if err := d.chat.UpdateStatus(ctx, c.UserID, in.MessageID, in.Status); err != nil {
			d.messageError(c, frame.Event, in.MessageID, err)
		}

	case realtime.EventMessageReaction:
		var in messageRef
		if !d.decode(c, frame, &in, realtime.EventMessageError) {
			return
		}
		if _, err := d.chat.ToggleReaction(ctx, c.UserID, in.MessageID, in.Emoji); err != nil {
			d.messageError(c, frame.Event, in.MessageID, err)
		}

	case realtime.EventMessageDelete:
		var in messageRef
		if !d.decode(c, frame, &in, realtime.EventMessageError) {
			return
		}
		if err := d.chat.DeleteMessage(ctx, c.UserID, in.MessageID); err != nil {
			d.messageError(c, frame.Event, in.MessageID, err)
		}

	case realtime.EventTyping:
		var in typingRef
		if !d.decode(c, frame, &in, realtime.EventError) {
			return
		}
		if err := d.chat.Typing(c.UserID, in.ToUserID); err != nil {
			d.fail(c, realtime.EventError, errorPayload{Error: publicMessage(err), Event: frame.Event})
		}

	case realtime.EventPing:
		d.emitter.EmitConn(c.ID, realtime.EventPong, pongPayload{Time: time.Now().UnixMilli()})

	default:
		d.fail(c, realtime.EventError, errorPayload{Error: "unknown event", Event: frame.Event})
	}
}

func (d *Dispatcher) decode(c *realtime.Client, frame models.Frame, v interface{}, errEvent string) bool {
	if len(frame.Data) == 0 {
		d.fail(c, errEvent, errorPayload{Error: "missing data", Event: frame.Event})
		return false
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		d.fail(c, errEvent, errorPayload{Error: "malformed data", Event: frame.Event})
		return false
	}
	return true
}

func (d *Dispatcher) messageError(c *realtime.Client, event, messageID string, err error) {
	d.fail(c, realtime.EventMessageError, errorPayload{Error: publicMessage(err), Event: event, MessageID: messageID})
}

func (d *Dispatcher) fail(c *realtime.Client, event string, payload errorPayload) {
	d.emitter.EmitConn(c.ID, event, payload)
}
