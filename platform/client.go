// Package platform implements the HTTP client for the remote smart-home
// platform REST API. The hub treats the platform as an opaque bearer-token
// protected collaborator.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/log"
)

type (
	// TokenStorer persists the platform token pair across restarts.
	TokenStorer interface {
		SaveTokenPair(access, refresh string) error
		TokenPair() (access, refresh string, err error)
	}

	// ClientCfg is used to initialize an instance of Client.
	ClientCfg struct {
		Log            log.Logger
		BaseURL        string
		Email          string
		Password       string
		RequestTimeout time.Duration
		TokenStore     TokenStorer
	}

	// Client is the platform API client.
	Client struct {
		log        log.Logger
		baseURL    string
		email      string
		password   string
		http       *http.Client
		tokenStore TokenStorer
		tokens     *tokenPair
	}

	// ConsumptionQuery filters a consumption aggregation request.
	ConsumptionQuery struct {
		HomeID      string
		RoomID      string
		DeviceID    string
		DateStart   time.Time
		DateEnd     time.Time
		Granularity string
		Cumulative  bool
	}

	// ConsumptionDevice is one device's bucketed consumption series.
	ConsumptionDevice struct {
		DeviceID    string             `json:"device_id"`
		DeviceName  string             `json:"device_name"`
		Consumption map[string]float64 `json:"consumption"`
	}

	// ConsumptionReport is the platform's aggregation response.
	ConsumptionReport struct {
		Devices     []ConsumptionDevice `json:"devices"`
		Total       float64             `json:"total"`
		Granularity string              `json:"granularity"`
		Cumulative  bool                `json:"cumulative"`
		DateStart   string              `json:"date_start"`
		DateEnd     string              `json:"date_end"`
	}
)

// NewClient creates and initializes a new instance of Client.
func NewClient(c *ClientCfg) *Client {
	cl := &Client{
		log:        c.Log.With("component", "platform"),
		baseURL:    c.BaseURL,
		email:      c.Email,
		password:   c.Password,
		http:       &http.Client{Timeout: c.RequestTimeout},
		tokenStore: c.TokenStore,
		tokens:     newTokenPair(),
	}

	if cl.tokenStore != nil {
		if access, refresh, err := cl.tokenStore.TokenPair(); err == nil && access != "" {
			cl.tokens.set(access, refresh)
		}
	}

	return cl
}

// Login authenticates against the platform and stores the issued token pair.
func (c *Client) Login(ctx context.Context) error {
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	body := map[string]string{"email": c.email, "password": c.password}
	if err := c.do(ctx, http.MethodPost, "/auth/login/", nil, body, &out, false); err != nil {
		return errors.Wrap(err, "login")
	}

	c.tokens.set(out.Access, out.Refresh)
	c.persistTokens()
	return nil
}

// ListDevices returns every device the account can see.
func (c *Client) ListDevices(ctx context.Context) ([]device.Device, error) {
	var out []device.Device
	if err := c.do(ctx, http.MethodGet, "/devices/devices/", nil, nil, &out, true); err != nil {
		return nil, errors.Wrap(err, "list devices")
	}
	return out, nil
}

// GetDevice refetches the authoritative state of one device.
func (c *Client) GetDevice(ctx context.Context, id device.ID) (*device.Device, error) {
	var out device.Device
	path := fmt.Sprintf("/devices/devices/%s/", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out, true); err != nil {
		return nil, errors.Wrapf(err, "get device %s", id)
	}
	return &out, nil
}

// SendCommand writes a single capability value to the device, scoped by its
// home and room identity.
func (c *Client) SendCommand(ctx context.Context, meta device.Meta, capability string, value interface{}) error {
	q := url.Values{}
	if meta.HomeID != "" {
		q.Set("home_id", meta.HomeID)
	}
	if meta.RoomID != "" {
		q.Set("room_id", meta.RoomID)
	}

	body := map[string]interface{}{capability: value}
	path := fmt.Sprintf("/devices/devices/%s/send_command/", meta.ID)
	if err := c.do(ctx, http.MethodPost, path, q, body, nil, true); err != nil {
		return errors.Wrapf(err, "send command %s to device %s", capability, meta.ID)
	}
	return nil
}

// QueryConsumption requests bucketed consumption samples.
func (c *Client) QueryConsumption(ctx context.Context, query ConsumptionQuery) (*ConsumptionReport, error) {
	q := url.Values{}
	if query.HomeID != "" {
		q.Set("home_id", query.HomeID)
	}
	if query.RoomID != "" {
		q.Set("room_id", query.RoomID)
	}
	if query.DeviceID != "" {
		q.Set("device_id", query.DeviceID)
	}
	q.Set("date_start", query.DateStart.Format(time.RFC3339))
	q.Set("date_end", query.DateEnd.Format(time.RFC3339))
	q.Set("granularity", query.Granularity)
	q.Set("cumulative", fmt.Sprintf("%t", query.Cumulative))

	var out ConsumptionReport
	if err := c.do(ctx, http.MethodGet, "/devices/energy/consumption/", q, nil, &out, true); err != nil {
		return nil, errors.Wrap(err, "query consumption")
	}
	return &out, nil
}

// IngestConsumption appends one consumption sample for the device. Zero
// readings are posted like any other so that an off-state stays visible in
// history.
func (c *Client) IngestConsumption(ctx context.Context, id device.ID, at time.Time, value float64) error {
	body := map[string]interface{}{
		"device_id": string(id),
		"time":      at.Format(time.RFC3339),
		"value":     value,
	}
	if err := c.do(ctx, http.MethodPost, "/devices/energy/consumption-ingest", nil, body, nil, true); err != nil {
		return errors.Wrapf(err, "ingest consumption for device %s", id)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, auth bool) error {
	resp, err := c.roundTrip(ctx, method, path, query, body, auth)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && auth {
		_ = resp.Body.Close()
		if err := c.refreshAccess(ctx); err != nil {
			return err
		}
		if resp, err = c.roundTrip(ctx, method, path, query, body, auth); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, b)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s %s: decode response", method, path)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}, auth bool) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		rdr = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, u, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	if auth {
		access, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	return resp, nil
}

func (c *Client) persistTokens() {
	if c.tokenStore == nil {
		return
	}
	access, refresh := c.tokens.get()
	if err := c.tokenStore.SaveTokenPair(access, refresh); err != nil {
		c.log.Errorf("func SaveTokenPair: %s", err)
	}
}
