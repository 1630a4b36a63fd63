// Package broadcast publishes trade-signal frames over NATS so other
// agents and watchers can subscribe to the persona's market calls.
package broadcast

import (
	"github.com/nats-io/nats.go"
)

// Messenger encapsulates a NATS connection.
type Messenger struct {
	nc      *nats.Conn
	subject string
}

// NewMessenger connects to the NATS server.
func NewMessenger(url, subject string) (*Messenger, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, err
	}
	return &Messenger{nc: nc, subject: subject}, nil
}

// Broadcast publishes an encoded signal frame.
func (m *Messenger) Broadcast(sig Signal) error {
	return m.nc.Publish(m.subject, sig.Encode())
}

// Subscribe listens for signal frames; malformed frames are dropped.
func (m *Messenger) Subscribe(handler func(Signal)) (*nats.Subscription, error) {
	return m.nc.Subscribe(m.subject, func(msg *nats.Msg) {
		sig, err := DecodeSignal(msg.Data)
		if err != nil {
			return
		}
		handler(sig)
	})
}

// Close drains and closes the connection.
func (m *Messenger) Close() {
	m.nc.Close()
}
