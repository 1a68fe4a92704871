package cfg

import (
	"fmt"
	"time"
)

// Store holds store configuration.
type Store struct {
	Addr      Addr
	Password  string
	AgentName string
	TTL       time.Duration
}

func (s Store) validate() error {
	if s.Addr.Host == "" {
		return fmt.Errorf("store host env var is missing")
	}
	if s.Addr.Port == 0 {
		return fmt.Errorf("store port env var is missing")
	}
	if s.AgentName == "" {
		return fmt.Errorf("store agent name env var is missing")
	}
	if s.TTL == 0 {
		return fmt.Errorf("store ttl env var is missing")
	}
	return nil
}
