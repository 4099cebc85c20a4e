package notify

import (
	"context"

	goVerify "github.com/MrEthical07/goVerify"
)

// Mux dispatches by message channel. The zero value has no routes.
type Mux struct {
	routes map[goVerify.Channel]goVerify.Notifier
}

var _ goVerify.Notifier = (*Mux)(nil)

func NewMux() *Mux {
	return &Mux{routes: make(map[goVerify.Channel]goVerify.Notifier, 2)}
}

// Handle registers n for channel, replacing any earlier registration. A nil
// n removes the route. Register routes before the Mux is used.
func (m *Mux) Handle(channel goVerify.Channel, n goVerify.Notifier) *Mux {
	if m.routes == nil {
		m.routes = make(map[goVerify.Channel]goVerify.Notifier, 2)
	}
	if n == nil {
		delete(m.routes, channel)
		return m
	}
	m.routes[channel] = n
	return m
}

func (m *Mux) Send(ctx context.Context, msg goVerify.Message) error {
	n, ok := m.routes[msg.Channel]
	if !ok {
		return goVerify.ErrNotifierUnavailable
	}
	return n.Send(ctx, msg)
}
