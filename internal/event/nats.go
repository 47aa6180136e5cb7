package event

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dinoki-ai/osagent/internal/logging"
)

// envelope is the wire format for events published to NATS. The event's
// exported fields become the data payload; type and timestamp come from
// the Event interface.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NATSPublisher forwards every event published on a Bus to a NATS server.
// Each event goes out on the subject "<prefix>.<event-type>", e.g.
// "osagent.events.issue.started", as a JSON envelope.
//
// Publishing is fire and forget: a failed publish is logged and dropped,
// never surfaced to the component that emitted the event.
type NATSPublisher struct {
	conn   *nats.Conn
	bus    *Bus
	prefix string
	subID  string
	logger *logging.Logger
}

// NewNATSPublisher connects to the NATS server at url and subscribes to all
// events on bus. The connection retries in the background if the server is
// unreachable at startup; outgoing events buffer until it comes up.
func NewNATSPublisher(bus *Bus, url, prefix string, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, err
	}

	p := &NATSPublisher{
		conn:   conn,
		bus:    bus,
		prefix: prefix,
		logger: logger.WithComponent("events"),
	}
	p.subID = bus.SubscribeAll(p.publish)

	p.logger.Debug("nats publisher connected", "url", url, "prefix", prefix)
	return p, nil
}

// publish serializes an event and sends it to NATS. Errors are logged at
// warn level and otherwise ignored.
func (p *NATSPublisher) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("failed to marshal event", "type", e.EventType(), "error", err)
		return
	}

	payload, err := json.Marshal(envelope{
		Type:      e.EventType(),
		Timestamp: e.Timestamp(),
		Data:      data,
	})
	if err != nil {
		p.logger.Warn("failed to marshal event envelope", "type", e.EventType(), "error", err)
		return
	}

	subject := p.prefix + "." + e.EventType()
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Close detaches the publisher from the bus and drains the NATS connection,
// flushing any buffered events before closing.
func (p *NATSPublisher) Close() {
	if p.subID != "" {
		p.bus.Unsubscribe(p.subID)
		p.subID = ""
	}
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
		p.conn = nil
	}
}
