// Package bus defines the messages that flow between transports and the agent.
package bus

import "time"

// InboundMessage is one utterance received from a transport.
type InboundMessage struct {
	channel   ChannelType    // "cli", "ws"
	senderId  string         // client identifier within the transport
	chatId    string         // conversation identifier
	content   string         // utterance text
	timestamp time.Time      // when the message was received
	metadata  map[string]any // transport-specific extra data (envelope type, …)
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
func NewInboundMessage(channel ChannelType, senderId, chatId, content string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderId:  senderId,
		chatId:    chatId,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) ChatId() string                 { return m.chatId }
func (m InboundMessage) SenderId() string               { return m.senderId }
func (m InboundMessage) Content() string                { return m.content }
func (m InboundMessage) Channel() ChannelType           { return m.channel }
func (m InboundMessage) Timestamp() time.Time           { return m.timestamp }
func (m InboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *InboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

// SessionKey returns the key used to look up the conversation session.
// Format: "channel:chat_id".
func (m InboundMessage) SessionKey() string {
	return string(m.channel) + ":" + m.chatId
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	preview := []rune(m.content)
	if len(preview) > 80 {
		return string(preview[:80]) + "..."
	}
	return m.content
}
