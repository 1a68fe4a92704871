// Package store provides Redis-backed persistence for the hub: the platform
// token pair, device state snapshots and the consumption sample cache.
package store

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/garyburd/redigo/redis"
	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"

	"github.com/domotik/hubms/cfg"
	"github.com/domotik/hubms/log"
)

const (
	tokenKey           = "platform:tokens"
	partialDevKey      = "device:"
	partialDevStateKey = ":state"
	partialConsumptKey = ":consumption:"
)

type (
	// Cfg is used to initialize an instance of Redis.
	Cfg struct {
		Log           log.Logger
		Addr          cfg.Addr
		Password      string
		AgentName     string
		TTL           time.Duration
		RetryTimeout  time.Duration
		RetryAttempts uint32
	}

	// Redis is the redis-backed store.
	Redis struct {
		log           log.Logger
		addr          cfg.Addr
		password      string
		agentName     string
		ttl           time.Duration
		retryTimeout  time.Duration
		retryAttempts uint32
		pool          *redis.Pool
		agent         *consul.Agent
	}
)

// New creates a new instance of Redis.
func New(c *Cfg) *Redis {
	return &Redis{
		log:           c.Log.With("component", "store"),
		addr:          c.Addr,
		password:      c.Password,
		agentName:     c.AgentName,
		ttl:           c.TTL,
		retryTimeout:  c.RetryTimeout,
		retryAttempts: c.RetryAttempts,
	}
}

// Init dials redis, checks the connection and registers the service with the
// consul agent for TTL health checking.
func (r *Redis) Init() error {
	addr := fmt.Sprintf("%s:%d", r.addr.Host, r.addr.Port)

	r.pool = &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			if r.password != "" {
				return redis.Dial("tcp", addr, redis.DialPassword(r.password))
			}
			return redis.Dial("tcp", addr)
		},
	}

	var (
		err          error
		retryAttempt uint32
	)
	for {
		_, err = r.Check()
		if err != nil && retryAttempt < r.retryAttempts {
			r.log.Errorf("func Init: func Check: %s", err)
			retryAttempt++
			duration := time.Duration(rand.Intn(int(r.retryTimeout.Seconds()) + 1))
			time.Sleep(time.Second*duration + 1)
			continue
		}
		break
	}
	if err != nil {
		return errors.Wrap(err, "store: init")
	}

	c, err := consul.NewClient(consul.DefaultConfig())
	if err != nil {
		return errors.Wrap(err, "store: consul")
	}
	r.agent = c.Agent()

	agent := &consul.AgentServiceRegistration{
		Name: r.agentName,
		Check: &consul.AgentServiceCheck{
			TTL: r.ttl.String(),
		},
	}
	if err := r.agent.ServiceRegister(agent); err != nil {
		return errors.Wrap(err, "store: consul")
	}
	go r.updateTTL(r.Check)

	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}

// Check issues a PING to verify the store is reachable.
func (r *Redis) Check() (bool, error) {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	if _, err := conn.Do("PING"); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) updateTTL(check func() (bool, error)) {
	t := time.NewTicker(r.ttl / 2)
	for range t.C {
		h := consul.HealthPassing
		if ok, err := check(); !ok {
			r.log.Errorf("func updateTTL: check failed: %s", err)
			// a failed check removes the instance from discovery rather
			// than letting it serve errors
			h = consul.HealthCritical
		}
		if err := r.agent.UpdateTTL("service:"+r.agentName, "", h); err != nil {
			r.log.Errorf("func updateTTL: %s", err)
		}
	}
}

// SaveTokenPair persists the platform access and refresh tokens.
func (r *Redis) SaveTokenPair(access, refresh string) error {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	if _, err := conn.Do("HMSET", tokenKey, "access", access, "refresh", refresh); err != nil {
		return errors.Wrap(err, "store: func SaveTokenPair: func HMSET")
	}
	return nil
}

// TokenPair returns the persisted platform token pair. Missing tokens are
// returned as empty strings, not as an error.
func (r *Redis) TokenPair() (string, string, error) {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	vals, err := redis.StringMap(conn.Do("HGETALL", tokenKey))
	if err != nil {
		return "", "", errors.Wrap(err, "store: func TokenPair: func HGETALL")
	}
	return vals["access"], vals["refresh"], nil
}

// SaveDeviceState persists a device state snapshot.
func (r *Redis) SaveDeviceState(id string, state map[string]interface{}) error {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	b, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "store: func SaveDeviceState: func Marshal")
	}
	if _, err := conn.Do("SET", partialDevKey+id+partialDevStateKey, b); err != nil {
		return errors.Wrap(err, "store: func SaveDeviceState: func SET")
	}
	return nil
}

// DeviceState returns the persisted state snapshot for a device.
func (r *Redis) DeviceState(id string) (map[string]interface{}, error) {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	b, err := redis.Bytes(conn.Do("GET", partialDevKey+id+partialDevStateKey))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: func DeviceState: func GET")
	}

	state := make(map[string]interface{})
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, errors.Wrap(err, "store: func DeviceState: func Unmarshal")
	}
	return state, nil
}

// SaveConsumption persists a device's bucketed consumption cache for the
// granularity.
func (r *Redis) SaveConsumption(id, granularity string, buckets map[string]float64) error {
	if len(buckets) == 0 {
		return nil
	}

	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	args := []interface{}{partialDevKey + id + partialConsumptKey + granularity}
	for k, v := range buckets {
		args = append(args, k, v)
	}
	if _, err := conn.Do("HMSET", args...); err != nil {
		return errors.Wrap(err, "store: func SaveConsumption: func HMSET")
	}
	return nil
}

// Consumption returns a device's persisted consumption cache for the
// granularity.
func (r *Redis) Consumption(id, granularity string) (map[string]float64, error) {
	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	vals, err := redis.StringMap(conn.Do("HGETALL", partialDevKey+id+partialConsumptKey+granularity))
	if err != nil {
		return nil, errors.Wrap(err, "store: func Consumption: func HGETALL")
	}

	out := make(map[string]float64, len(vals))
	for k, v := range vals {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
			continue
		}
		out[k] = f
	}
	return out, nil
}
