package channels

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/murmur/internal/bus"
)

// Manager owns the enabled channels and routes outbound messages.
type Manager struct {
	channels map[bus.ChannelType]Channel
	b        bus.Bus
}

// NewManager registers chs, keyed by their Name.
func NewManager(b bus.Bus, chs ...Channel) *Manager {
	m := &Manager{channels: make(map[bus.ChannelType]Channel, len(chs)), b: b}
	for _, ch := range chs {
		m.channels[bus.ChannelType(ch.Name())] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}
	return m
}

// EnabledChannels returns the names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, string(n))
	}
	return names
}

// StartAll runs every channel and the outbound dispatcher. It blocks until
// ctx is cancelled or a channel fails.
func (m *Manager) StartAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.dispatchOutbound(ctx)
		return nil
	})
	for name, ch := range m.channels {
		g.Go(func() error {
			slog.Info("starting channel", "name", name)
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", name, "err", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// dispatchOutbound routes each outbound message to its channel's Send.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.b.OutboundChan():
			ch, ok := m.channels[msg.Channel()]
			if !ok {
				slog.Debug("unknown channel for outbound message", "channel", msg.Channel())
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("send error", "channel", msg.Channel(), "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
