package services

import (
	"context"
	"errors"
	"time"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
)

const (
	defaultHistoryLimit = 200
	conversationLimit   = 50
)

// VoiceSynth turns message text into a hosted audio file.
type VoiceSynth interface {
	Synthesize(ctx context.Context, text, gender string) (string, error)
}

// MessageContent is the payload shared by private and group sends.
type MessageContent struct {
	Body        string `json:"message" validate:"max=4000"`
	MediaURL    string `json:"mediaUrl" validate:"max=2048"`
	MediaType   string `json:"mediaType" validate:"max=32"`
	LocalID     string `json:"localId" validate:"max=128"`
	IsVoice     bool   `json:"isVoice"`
	VoiceGender string `json:"voiceGender" validate:"max=16"`
}

func (c MessageContent) empty() bool {
	return c.Body == "" && c.MediaURL == ""
}

type SendPrivateInput struct {
	SenderID     string `json:"-"`
	SenderConnID string `json:"-"`
	ToUserID     string `json:"toUserId"`
	MessageContent
}

type SendGroupInput struct {
	SenderID     string `json:"-"`
	SenderConnID string `json:"-"`
	GroupID      string `json:"groupId"`
	MessageContent
}

// ChatService routes private and group messages and their follow-up
// events (status, reactions, deletes, typing).
type ChatService struct {
	messages store.Messages
	users    store.Users
	groups   store.Groups
	emitter  realtime.Emitter
	notifier Notifier
	voice    VoiceSynth
	now      func() time.Time
}

func NewChatService(messages store.Messages, users store.Users, groups store.Groups, emitter realtime.Emitter, notifier Notifier) *ChatService {
	return &ChatService{
		messages: messages,
		users:    users,
		groups:   groups,
		emitter:  emitter,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithVoice enables text-to-speech for voice messages.
func (s *ChatService) WithVoice(v VoiceSynth) *ChatService {
	s.voice = v
	return s
}

// SendPrivate persists a direct message and fans it out: the recipient gets
// private:message, the sender's other connections and the issuing
// connection get private:message:sent.
func (s *ChatService) SendPrivate(ctx context.Context, in SendPrivateInput) (*models.MessageEnvelope, error) {
	if in.ToUserID == "" || in.empty() {
		metrics.MessageErrors.WithLabelValues("private", "validation").Inc()
		return nil, invalid("missing recipient or message content")
	}
	if err := validateStruct(in); err != nil {
		metrics.MessageErrors.WithLabelValues("private", "validation").Inc()
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, in.ToUserID); err != nil {
		metrics.MessageErrors.WithLabelValues("private", "recipient").Inc()
		return nil, storeErr("load recipient", err)
	}

	msg := s.newMessage(ctx, in.SenderID, in.MessageContent)
	msg.ReceiverID = in.ToUserID
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		metrics.MessageErrors.WithLabelValues("private", "persistence").Inc()
		return nil, storeErr("save message", err)
	}

	env := models.NewEnvelope(msg, s.userInfo(ctx, in.SenderID), in.LocalID)
	s.emitter.Emit(realtime.UserChannel(in.ToUserID), realtime.EventPrivateMessage, env)
	s.emitter.EmitExcept(realtime.UserChannel(in.SenderID), in.SenderConnID, realtime.EventPrivateMessageSent, env)
	if in.SenderConnID != "" {
		s.emitter.EmitConn(in.SenderConnID, realtime.EventPrivateMessageSent, env)
	}

	if in.SenderID != in.ToUserID && s.notifier != nil {
		s.notifier.Dispatch(ctx, NotifyInput{
			UserID:     in.ToUserID,
			FromUserID: in.SenderID,
			Type:       models.NotifyMessage,
			Content:    msg.Preview(),
			Refs:       models.NotificationRefs{MessageID: msg.ID},
		})
	}

	metrics.MessagesSent.WithLabelValues("private").Inc()
	return &env, nil
}

// SendGroup persists a group message after a live membership check. The
// group channel gets group:message, the issuing connection gets
// group:message:sent instead.
func (s *ChatService) SendGroup(ctx context.Context, in SendGroupInput) (*models.MessageEnvelope, error) {
	if in.GroupID == "" || in.empty() {
		metrics.MessageErrors.WithLabelValues("group", "validation").Inc()
		return nil, invalid("missing group id or message content")
	}
	if err := validateStruct(in); err != nil {
		metrics.MessageErrors.WithLabelValues("group", "validation").Inc()
		return nil, err
	}
	g, err := s.groups.GetGroup(ctx, in.GroupID)
	if err != nil {
		metrics.MessageErrors.WithLabelValues("group", "group").Inc()
		return nil, storeErr("load group", err)
	}
	if !g.HasMember(in.SenderID) {
		metrics.MessageErrors.WithLabelValues("group", "not_member").Inc()
		return nil, ErrNotMember
	}

	msg := s.newMessage(ctx, in.SenderID, in.MessageContent)
	msg.GroupID = in.GroupID
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		metrics.MessageErrors.WithLabelValues("group", "persistence").Inc()
		return nil, storeErr("save message", err)
	}

	env := models.NewEnvelope(msg, s.userInfo(ctx, in.SenderID), in.LocalID)
	s.emitter.EmitExcept(realtime.GroupChannel(in.GroupID), in.SenderConnID, realtime.EventGroupMessage, env)
	if in.SenderConnID != "" {
		s.emitter.EmitConn(in.SenderConnID, realtime.EventGroupMessageSent, env)
	}

	metrics.MessagesSent.WithLabelValues("group").Inc()
	return &env, nil
}

func (s *ChatService) newMessage(ctx context.Context, senderID string, c MessageContent) *models.Message {
	msg := &models.Message{
		SenderID:  senderID,
		Body:      c.Body,
		MediaURL:  c.MediaURL,
		MediaType: c.MediaType,
		Status:    models.StatusSent,
		Reactions: models.NewReactions(),
		CreatedAt: s.now(),
	}
	if c.IsVoice {
		msg.VoiceGender = c.VoiceGender
		msg.VoiceURL = s.synthesize(ctx, c)
	}
	return msg
}

// synthesize never fails the send; the message goes out without audio.
func (s *ChatService) synthesize(ctx context.Context, c MessageContent) string {
	if s.voice == nil || c.Body == "" || c.VoiceGender == "" {
		return ""
	}
	url, err := s.voice.Synthesize(ctx, c.Body, c.VoiceGender)
	if err != nil {
		logging.Warn().Err(err).Msg("voice conversion failed, sending without audio")
		return ""
	}
	return url
}

func (s *ChatService) userInfo(ctx context.Context, userID string) models.UserInfo {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.UserInfo{ID: userID}
	}
	return u.Info()
}

type statusPayload struct {
	MessageID string               `json:"messageId"`
	Status    models.MessageStatus `json:"status"`
	By        string               `json:"by"`
}

// UpdateStatus records a delivery state. Last write wins, including
// writes that move the state backwards.
func (s *ChatService) UpdateStatus(ctx context.Context, by, messageID string, status models.MessageStatus) error {
	if messageID == "" || !status.Valid() {
		return invalid("status must be one of sent, delivered, seen")
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return storeErr("load message", err)
	}
	if msg.IsGroup() {
		return invalid("status applies to private messages only")
	}
	if by != msg.SenderID && by != msg.ReceiverID {
		return ErrForbidden
	}
	if err := s.messages.UpdateMessageStatus(ctx, messageID, status); err != nil {
		return storeErr("update status", err)
	}
	s.emitter.Emit(realtime.UserChannel(msg.SenderID), realtime.EventPrivateStatus,
		statusPayload{MessageID: messageID, Status: status, By: by})
	return nil
}

// ReactionUpdate is the outcome of a toggle, as broadcast to participants.
type ReactionUpdate struct {
	MessageID string           `json:"messageId"`
	UserID    string           `json:"userId"`
	Emoji     models.Emoji     `json:"emoji"`
	Action    string           `json:"action"`
	Reactions models.Reactions `json:"reactions"`
}

// ToggleReaction applies a click on emoji: the same emoji removes the
// user's reaction, a different one is ErrAlreadyReacted.
func (s *ChatService) ToggleReaction(ctx context.Context, userID, messageID string, emoji models.Emoji) (*ReactionUpdate, error) {
	msg, err := s.visibleMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	next, change, err := msg.Reactions.Toggle(userID, emoji)
	switch {
	case errors.Is(err, models.ErrAlreadyReacted):
		metrics.ReactionsToggled.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyReacted
	case errors.Is(err, models.ErrUnknownEmoji):
		return nil, invalid("unsupported emoji %q", emoji)
	case err != nil:
		return nil, err
	}

	if err := s.messages.UpdateReactions(ctx, messageID, next); err != nil {
		return nil, storeErr("update reactions", err)
	}

	update := &ReactionUpdate{MessageID: messageID, UserID: userID, Emoji: emoji, Reactions: next}
	if change == models.ReactionAdded {
		update.Action = "added"
	} else {
		update.Action = "removed"
	}
	metrics.ReactionsToggled.WithLabelValues(update.Action).Inc()
	s.emitParticipants(msg, realtime.EventMessageReaction, update)

	if change == models.ReactionAdded && msg.SenderID != userID && s.notifier != nil {
		s.notifier.Dispatch(ctx, NotifyInput{
			UserID:     msg.SenderID,
			FromUserID: userID,
			Type:       models.NotifyReaction,
			Content:    "reacted " + string(emoji) + " to your message",
			Refs:       models.NotificationRefs{MessageID: messageID},
		})
	}
	return update, nil
}

type deletedPayload struct {
	MessageID string `json:"messageId"`
}

// DeleteMessage soft-deletes a message; only its sender may do so.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return storeErr("load message", err)
	}
	if msg.Deleted {
		return ErrNotFound
	}
	if msg.SenderID != userID {
		return ErrForbidden
	}
	if err := s.messages.SoftDeleteMessage(ctx, messageID); err != nil {
		return storeErr("delete message", err)
	}
	s.emitParticipants(msg, realtime.EventMessageDeleted, deletedPayload{MessageID: messageID})
	return nil
}

type typingPayload struct {
	From   string `json:"from"`
	UserID string `json:"userId"`
}

// Typing relays a typing indicator to another user.
func (s *ChatService) Typing(from, toUserID string) error {
	if toUserID == "" {
		return invalid("toUserId is required")
	}
	s.emitter.Emit(realtime.UserChannel(toUserID), realtime.EventTyping, typingPayload{From: from, UserID: from})
	return nil
}

// PrivateHistory returns the conversation between userID and peerID,
// oldest first.
func (s *ChatService) PrivateHistory(ctx context.Context, userID, peerID string, limit int) ([]models.MessageEnvelope, error) {
	if peerID == "" {
		return nil, invalid("peer id is required")
	}
	msgs, err := s.messages.PrivateHistory(ctx, userID, peerID, historyLimit(limit))
	if err != nil {
		return nil, storeErr("load history", err)
	}
	return s.envelopes(ctx, msgs), nil
}

// GroupHistory returns a group's messages to one of its members.
func (s *ChatService) GroupHistory(ctx context.Context, userID, groupID string, limit int) ([]models.MessageEnvelope, error) {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, storeErr("check membership", err)
	}
	if !member {
		return nil, ErrNotMember
	}
	msgs, err := s.messages.GroupHistory(ctx, groupID, historyLimit(limit))
	if err != nil {
		return nil, storeErr("load history", err)
	}
	return s.envelopes(ctx, msgs), nil
}

// Conversations lists the latest message exchanged with each peer,
// newest first.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	msgs, err := s.messages.LatestPerPeer(ctx, userID, conversationLimit)
	if err != nil {
		return nil, storeErr("load conversations", err)
	}
	out := make([]models.ConversationSummary, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		peer := m.ReceiverID
		if peer == userID {
			peer = m.SenderID
		}
		summary := models.ConversationSummary{
			UserID:          peer,
			LastMessage:     m.Preview(),
			LastMessageTime: m.CreatedAt,
			MessageID:       m.ID,
		}
		if u, err := s.users.GetUser(ctx, peer); err == nil {
			info := u.Info()
			summary.User = &info
			summary.Online = u.Online
		}
		out = append(out, summary)
	}
	return out, nil
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > defaultHistoryLimit {
		return defaultHistoryLimit
	}
	return limit
}

func (s *ChatService) envelopes(ctx context.Context, msgs []models.Message) []models.MessageEnvelope {
	senders := make(map[string]models.UserInfo)
	out := make([]models.MessageEnvelope, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		info, ok := senders[m.SenderID]
		if !ok {
			info = s.userInfo(ctx, m.SenderID)
			senders[m.SenderID] = info
		}
		out = append(out, models.NewEnvelope(m, info, ""))
	}
	return out
}

// visibleMessage loads a live message the user is allowed to see.
func (s *ChatService) visibleMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, storeErr("load message", err)
	}
	if msg.Deleted {
		return nil, ErrNotFound
	}
	if msg.IsGroup() {
		member, err := s.groups.IsMember(ctx, msg.GroupID, userID)
		if err != nil {
			return nil, storeErr("check membership", err)
		}
		if !member {
			return nil, ErrNotMember
		}
		return msg, nil
	}
	if userID != msg.SenderID && userID != msg.ReceiverID {
		return nil, ErrForbidden
	}
	return msg, nil
}

func (s *ChatService) emitParticipants(m *models.Message, event string, payload interface{}) {
	if m.IsGroup() {
		s.emitter.Emit(realtime.GroupChannel(m.GroupID), event, payload)
		return
	}
	s.emitter.Emit(realtime.UserChannel(m.SenderID), event, payload)
	if m.ReceiverID != m.SenderID {
		s.emitter.Emit(realtime.UserChannel(m.ReceiverID), event, payload)
	}
}
