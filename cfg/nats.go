package cfg

import (
	"fmt"
)

// NATS holds nats configuration.
type NATS struct {
	Addr       Addr
	EventTopic string
}

func (n NATS) validate() error {
	if n.Addr.Host == "" {
		return fmt.Errorf("nats host env var is missing")
	}
	if n.Addr.Port == 0 {
		return fmt.Errorf("nats port env var is missing")
	}
	if n.EventTopic == "" {
		return fmt.Errorf("nats event topic env var is missing")
	}
	return nil
}
