package progress

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSEmitter mirrors progress events to a NATS subject so remote
// supervisors can observe a run without sharing its stderr.
type NATSEmitter struct {
	nc      *nats.Conn
	subject string
}

// NewNATS connects to the given NATS URL and publishes events on subject.
// Connection failure is returned to the caller (a configuration error);
// publish failures after that are dropped.
func NewNATS(url, subject string) (*NATSEmitter, error) {
	nc, err := nats.Connect(url, nats.Name("tagforge-progress"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSEmitter{nc: nc, subject: subject}, nil
}

// Emit publishes the event. Errors are dropped: the channel is advisory.
func (n *NATSEmitter) Emit(e Event) {
	if e.Glyph == "" {
		e.Glyph = defaultGlyphs[e.Kind]
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	n.nc.Publish(n.subject, data)
}

// Close drains the connection, letting queued publishes settle.
func (n *NATSEmitter) Close() {
	n.nc.Drain()
}
