// Package channels provides the transports that feed utterances to the agent.
package channels

import (
	"context"
	"log/slog"

	"github.com/crystaldolphin/murmur/internal/bus"
)

// Channel is one transport.
type Channel interface {
	Name() string
	// Start runs the transport until ctx is cancelled.
	Start(ctx context.Context) error
	// Send delivers an agent response.
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName bus.ChannelType
	b           bus.Bus
}

// NewBase creates a Base with the given channel name and bus.
func NewBase(name bus.ChannelType, b bus.Bus) Base {
	return Base{channelName: name, b: b}
}

// HandleMessage pushes an utterance to the bus as an InboundMessage.
func (b *Base) HandleMessage(ctx context.Context, senderId, chatId, content string, metadata map[string]any) error {
	msg := bus.NewInboundMessage(b.channelName, senderId, chatId, content)
	msg.SetMetadata(metadata)
	if err := b.b.PublishInbound(ctx, msg); err != nil {
		slog.Warn("channel: inbound dropped", "channel", b.channelName, "sender", senderId, "err", err)
		return err
	}
	return nil
}
