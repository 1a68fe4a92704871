// Package pub publishes hub events (device state changes, dispatch failures)
// to NATS for downstream consumers.
package pub

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/nats-io/go-nats"
	uuid "github.com/satori/go.uuid"

	"github.com/domotik/hubms/cfg"
	"github.com/domotik/hubms/log"
)

type (
	// Cfg is used to initialize an instance of publisher.
	Cfg struct {
		Addr          cfg.Addr
		EventTopic    string
		Log           log.Logger
		RetryTimeout  time.Duration
		RetryAttempts uint32
	}

	publisher struct {
		addr          cfg.Addr
		eventTopic    string
		log           log.Logger
		retryTimeout  time.Duration
		retryAttempts uint32
	}

	// event is the wire form of a published hub event.
	event struct {
		AggregateID string          `json:"aggregate_id"`
		EventID     string          `json:"event_id"`
		EventType   string          `json:"event_type"`
		EventData   json.RawMessage `json:"event_data"`
		OccurredAt  string          `json:"occurred_at"`
	}
)

// Event types.
const (
	EventStateChanged  = "state_changed"
	EventCommandFailed = "command_failed"
	EventReconcileLost = "reconcile_failed"
)

// New creates and initializes a new instance of publisher.
func New(c *Cfg) *publisher { // nolint
	return &publisher{
		addr:          c.Addr,
		eventTopic:    c.EventTopic,
		log:           c.Log.With("component", "pub"),
		retryTimeout:  c.RetryTimeout,
		retryAttempts: c.RetryAttempts,
	}
}

// Publish sends an event for the given device id to the per-device topic.
func (p *publisher) Publish(deviceID, eventType string, data interface{}) error {
	var (
		err          error
		conn         *nats.Conn
		retryAttempt uint32
	)

	for {
		conn, err = nats.Connect(fmt.Sprintf("nats://%s:%d", p.addr.Host, p.addr.Port))
		if err != nil && retryAttempt < p.retryAttempts {
			p.log.Error("func Publish: nats connectivity status is DISCONNECTED")
			retryAttempt++
			duration := time.Duration(rand.Intn(int(p.retryTimeout.Seconds()) + 1))
			time.Sleep(time.Second*duration + 1)
			continue
		}
		break
	}
	if err != nil {
		return fmt.Errorf("func Connect: %s", err)
	}
	defer conn.Close()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("func Marshal: %s", err)
	}

	e := event{
		AggregateID: deviceID,
		EventID:     uuid.NewV4().String(),
		EventType:   eventType,
		EventData:   raw,
		OccurredAt:  time.Now().Format(time.RFC3339),
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("func Marshal: %s", err)
	}

	topic := fmt.Sprintf("%s.%s", p.eventTopic, deviceID)
	if err := conn.Publish(topic, b); err != nil {
		return err
	}

	p.log.Debugf("event [%s] for device with id [%s]", eventType, deviceID)
	return nil
}
