package realtime

// Inbound events.
const (
	EventGroupSubscribe  = "group:subscribe"
	EventGroupMessage    = "group:message"
	EventPrivateMessage  = "private:message"
	EventPrivateStatus   = "private:status"
	EventMessageReaction = "message:reaction"
	EventMessageDelete   = "message:delete"
	EventTyping          = "typing"
	EventPing            = "ping"
)

// Outbound events.
const (
	EventPresenceUpdate      = "presence:update"
	EventGroupSubscribed     = "group:subscribed"
	EventGroupSubscribeError = "group:subscribe:error"
	EventGroupMessageSent    = "group:message:sent"
	EventGroupMessageError   = "group:message:error"
	EventGroupMemberLeft     = "group:member:left"
	EventGroupLeft           = "group:left"
	EventPrivateMessageSent  = "private:message:sent"
	EventPrivateMessageError = "private:message:error"
	EventMessageDeleted      = "message:deleted"
	EventMessageError        = "message:error"
	EventStatusNew           = "status:new"
	EventStatusDeleted       = "status:deleted"
	EventStatusView          = "status:view"
	EventNotificationNew     = "notification:new"
	EventConnected           = "connected"
	EventError               = "error"
	EventPong                = "pong"
)

const (
	userChannelPrefix  = "user:"
	groupChannelPrefix = "group:"
)

// UserChannel is the personal channel of a user.
func UserChannel(userID string) string { return userChannelPrefix + userID }

// GroupChannel is the broadcast channel of a group.
func GroupChannel(groupID string) string { return groupChannelPrefix + groupID }
