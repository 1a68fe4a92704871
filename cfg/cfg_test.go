package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	_, err := NewConfig()
	assert.NotNil(t, err)
}

func TestServiceConfig(t *testing.T) {
	svc := Service{
		AppID:              "hubms",
		LogLevel:           "debug",
		RetryAttempts:      5,
		RetryTimeout:       time.Duration(100),
		PortREST:           2222,
		PortWebSocket:      3333,
		TerminationTimeout: time.Duration(100),
		RefreshInterval:    time.Duration(100),
	}
	err := svc.validate()
	assert.Nil(t, err)

	svc = Service{}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms"}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms", LogLevel: "debug"}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms", LogLevel: "debug", RetryAttempts: 5}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms", LogLevel: "debug", RetryAttempts: 5, RetryTimeout: time.Duration(100)}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms", LogLevel: "debug", RetryAttempts: 5, RetryTimeout: time.Duration(100),
		PortREST: 2222}
	err = svc.validate()
	assert.NotNil(t, err)

	svc = Service{AppID: "hubms", LogLevel: "debug", RetryAttempts: 5, RetryTimeout: time.Duration(100),
		PortREST: 2222, PortWebSocket: 3333}
	err = svc.validate()
	assert.NotNil(t, err)
}

func TestStoreConfig(t *testing.T) {
	s := Store{
		Addr:      Addr{Host: "localhost", Port: 6379},
		Password:  "password",
		AgentName: "hubms_store",
		TTL:       time.Second * 4,
	}
	err := s.validate()
	assert.Nil(t, err)

	s = Store{}
	err = s.validate()
	assert.NotNil(t, err)

	s = Store{Addr: Addr{Host: "localhost"}}
	err = s.validate()
	assert.NotNil(t, err)

	s = Store{Addr: Addr{Host: "localhost", Port: 6379}}
	err = s.validate()
	assert.NotNil(t, err)
}

func TestPlatformConfig(t *testing.T) {
	p := Platform{
		BaseURL:        "https://platform.example.com/api",
		Email:          "hub@example.com",
		Password:       "password",
		RequestTimeout: time.Second * 10,
	}
	err := p.validate()
	assert.Nil(t, err)

	p = Platform{}
	err = p.validate()
	assert.NotNil(t, err)

	p = Platform{BaseURL: "https://platform.example.com/api"}
	err = p.validate()
	assert.NotNil(t, err)

	p = Platform{BaseURL: "https://platform.example.com/api", Email: "hub@example.com"}
	err = p.validate()
	assert.NotNil(t, err)
}

func TestNATSConfig(t *testing.T) {
	n := NATS{
		Addr:       Addr{Host: "localhost", Port: 4222},
		EventTopic: "hub.device",
	}
	err := n.validate()
	assert.Nil(t, err)

	n = NATS{}
	err = n.validate()
	assert.NotNil(t, err)

	n = NATS{Addr: Addr{Host: "localhost", Port: 4222}}
	err = n.validate()
	assert.NotNil(t, err)
}
