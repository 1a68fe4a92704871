// Package cfg assembles and validates the hub configuration from env vars.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for all the hub components.
type Config struct {
	Service  Service
	Store    Store
	NATS     NATS
	Platform Platform
	Token    Token
}

// Addr is used to store a host and an open port of a remote server.
type Addr struct {
	Host string
	Port uint64
}

// NewConfig reads the configuration from env vars, validates and returns it.
func NewConfig() (*Config, error) {
	c := &Config{
		Service: Service{
			AppID:              os.Getenv("APP_ID"),
			LogLevel:           os.Getenv("LOG_LEVEL"),
			RetryAttempts:      uint32(uintEnv("RETRY_ATTEMPTS")),
			RetryTimeout:       time.Duration(uintEnv("RETRY_TIMEOUT_MS")) * time.Millisecond,
			PortREST:           uintEnv("PORT_REST"),
			PortWebSocket:      uintEnv("PORT_WEBSOCKET"),
			TerminationTimeout: time.Duration(uintEnv("TERMINATION_TIMEOUT_MS")) * time.Millisecond,
			RefreshInterval:    time.Duration(uintEnv("REFRESH_INTERVAL_S")) * time.Second,
		},
		Store: Store{
			Addr: Addr{
				Host: os.Getenv("STORE_HOST"),
				Port: uintEnv("STORE_PORT"),
			},
			Password:  os.Getenv("STORE_PASSWORD"),
			AgentName: os.Getenv("STORE_AGENT_NAME"),
			TTL:       time.Duration(uintEnv("STORE_TTL_S")) * time.Second,
		},
		NATS: NATS{
			Addr: Addr{
				Host: os.Getenv("NATS_HOST"),
				Port: uintEnv("NATS_PORT"),
			},
			EventTopic: os.Getenv("NATS_EVENT_TOPIC"),
		},
		Platform: Platform{
			BaseURL:        os.Getenv("PLATFORM_BASE_URL"),
			Email:          os.Getenv("PLATFORM_EMAIL"),
			Password:       os.Getenv("PLATFORM_PASSWORD"),
			RequestTimeout: time.Duration(uintEnv("PLATFORM_REQUEST_TIMEOUT_MS")) * time.Millisecond,
		},
		Token: Token{
			SigningKey: os.Getenv("TOKEN_SIGNING_KEY"),
		},
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	if err := c.Service.validate(); err != nil {
		return fmt.Errorf("service config: %s", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store config: %s", err)
	}
	if err := c.NATS.validate(); err != nil {
		return fmt.Errorf("nats config: %s", err)
	}
	if err := c.Platform.validate(); err != nil {
		return fmt.Errorf("platform config: %s", err)
	}
	if err := c.Token.validate(); err != nil {
		return fmt.Errorf("token config: %s", err)
	}
	return nil
}

func uintEnv(key string) uint64 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
