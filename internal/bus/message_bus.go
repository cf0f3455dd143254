package bus

import "context"

type ChannelType string

const (
	ChannelCLI       ChannelType = "cli"
	ChannelWebSocket ChannelType = "ws"
)

// Bus is the contract between transports and the agent loop.
type Bus interface {
	// PublishInbound delivers an utterance from a transport to the agent.
	// It blocks until there is room or ctx is done.
	PublishInbound(ctx context.Context, msg InboundMessage) error
	// PublishOutbound delivers a response from the agent to transports.
	PublishOutbound(ctx context.Context, msg OutboundMessage) error
	// InboundChan returns a receive-only channel for the agent to consume.
	InboundChan() <-chan InboundMessage
	// OutboundChan returns a receive-only channel for transports to consume.
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the default in-process Bus backed by buffered Go channels.
//
// Transports push InboundMessages; the agent loop consumes them one at a
// time and pushes OutboundMessages back for the transports to deliver.
type MessageBus struct {
	inbound  chan InboundMessage  // transports -> agent
	outbound chan OutboundMessage // agent -> transports
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

// PublishInbound sends an InboundMessage to the agent.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishOutbound sends an OutboundMessage to the transports.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InboundChan returns a receive-only view of the inbound channel.
func (b *MessageBus) InboundChan() <-chan InboundMessage {
	return b.inbound
}

// OutboundChan returns a receive-only view of the outbound channel.
func (b *MessageBus) OutboundChan() <-chan OutboundMessage {
	return b.outbound
}
