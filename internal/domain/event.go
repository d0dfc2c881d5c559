package domain

import (
	"encoding/json"
	"fmt"
)

// Channel identifies one of the fixed broadcast topics. The set is closed:
// every process subscribes to all of them at startup and the set never
// changes at runtime.
type Channel string

const (
	// Targeted single-recipient channels. Payloads carry "to_user_id".
	ChannelMessageSent      Channel = "message.sent"
	ChannelNotificationSent Channel = "notification.sent"
	ChannelUnreadChanged    Channel = "unread.changed"

	// Targeted dual-recipient channels. Payloads carry "sender_id" and
	// "receiver_id"; both sides must see the change for multi-device
	// consistency.
	ChannelMessageEdited  Channel = "message.edited"
	ChannelMessageDeleted Channel = "message.deleted"

	// Global channels, delivered to every local connection.
	ChannelPostCreated     Channel = "post.created"
	ChannelPostUpdated     Channel = "post.updated"
	ChannelPostDeleted     Channel = "post.deleted"
	ChannelGroupCreated    Channel = "group.created"
	ChannelGroupUpdated    Channel = "group.updated"
	ChannelGroupDeleted    Channel = "group.deleted"
	ChannelUserUpdated     Channel = "user.updated"
	ChannelPresenceChanged Channel = "presence.changed"
)

// allChannels is the fixed subscription set, in subscription order.
var allChannels = []Channel{
	ChannelMessageSent,
	ChannelMessageEdited,
	ChannelMessageDeleted,
	ChannelNotificationSent,
	ChannelUnreadChanged,
	ChannelPostCreated,
	ChannelPostUpdated,
	ChannelPostDeleted,
	ChannelGroupCreated,
	ChannelGroupUpdated,
	ChannelGroupDeleted,
	ChannelUserUpdated,
	ChannelPresenceChanged,
}

// Channels returns the complete fixed channel set.
func Channels() []Channel {
	out := make([]Channel, len(allChannels))
	copy(out, allChannels)
	return out
}

// ParseChannel maps a channel name to its Channel value. The second return
// value reports whether the name belongs to the fixed set.
func ParseChannel(name string) (Channel, bool) {
	for _, ch := range allChannels {
		if string(ch) == name {
			return ch, true
		}
	}
	return "", false
}

func (c Channel) String() string { return string(c) }

// TargetedPayload is the envelope fragment shared by all single-recipient
// channels. The remaining payload fields are routed verbatim and never
// inspected here.
type TargetedPayload struct {
	ToUserID string `json:"to_user_id"`
}

// DualTargetPayload is the envelope fragment shared by dual-recipient
// channels. Sender and receiver are evaluated independently, so a process
// holding only one of the two still delivers to that one.
type DualTargetPayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// Delivery is the frame written to a client connection. Payload is the exact
// bytes published on the bus; this layer routes payloads, it does not
// transform them.
type Delivery struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeDelivery builds the wire frame for one event. The same frame is
// reused for every recipient of a broadcast.
func EncodeDelivery(event string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		payload = []byte("null")
	}
	frame, err := json.Marshal(Delivery{Event: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode delivery frame for %q: %w", event, err)
	}
	return frame, nil
}
