// Package aguaiot implements a client for Micronova's Agua IOT cloud, the
// platform behind Eva Calor pellet stoves. Authentication, device listing and
// register reads/writes all go through the vendor's HTTP API; every call is a
// single blocking round trip with no retries.
package aguaiot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAPIRoot is the production endpoint for Eva Calor branded stoves.
	DefaultAPIRoot = "https://evastampaggi.agua-iot.com"

	// DefaultCustomerCode identifies the Eva Calor brand to the platform.
	DefaultCustomerCode = "635987"
)

// Observer is invoked after every API request with the endpoint path and the
// request outcome. It lets callers feed metrics without coupling the client
// to a metrics library.
type Observer func(endpoint string, err error)

// Config carries the account credentials and optional overrides for a Client.
type Config struct {
	// Email and Password are the Agua IOT account credentials.
	Email    string
	Password string

	// UUID identifies this installation to the cloud. The vendor app
	// generates one per install; any stable unique string works.
	UUID string

	// APIRoot overrides the production endpoint. Tests point this at a
	// fake server.
	APIRoot string

	// CustomerCode overrides the Eva Calor brand code.
	CustomerCode string

	// HTTPClient overrides the default client and its 15 second timeout.
	HTTPClient *http.Client

	// Observer, when set, is called after every request.
	Observer Observer
}

// Client talks to the Agua IOT cloud on behalf of one account.
type Client struct {
	email        string
	password     string
	uuid         string
	apiRoot      string
	customerCode string
	httpClient   *http.Client
	observer     Observer

	token string
}

// NewClient builds a client from cfg. No network traffic happens until Login
// or Devices is called.
func NewClient(cfg Config) *Client {
	c := &Client{
		email:        cfg.Email,
		password:     cfg.Password,
		uuid:         cfg.UUID,
		apiRoot:      cfg.APIRoot,
		customerCode: cfg.CustomerCode,
		httpClient:   cfg.HTTPClient,
		observer:     cfg.Observer,
	}
	if c.apiRoot == "" {
		c.apiRoot = DefaultAPIRoot
	}
	if c.customerCode == "" {
		c.customerCode = DefaultCustomerCode
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the cloud and stores the session token used by
// all subsequent calls.
func (c *Client) Login() error {
	var resp loginResponse
	if err := c.post("/userLogin", loginRequest{Email: c.email, Password: c.password}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return &Error{Message: "login response carried no token"}
	}
	c.token = resp.Token
	return nil
}

type deviceInfo struct {
	IDDevice    string `json:"id_device"`
	Name        string `json:"name"`
	NameProduct string `json:"name_product"`
}

type deviceListResponse struct {
	Devices []deviceInfo `json:"devices"`
}

// Devices returns the stoves registered to the account, logging in first if
// no session is held yet.
func (c *Client) Devices() ([]*Device, error) {
	if c.token == "" {
		if err := c.Login(); err != nil {
			return nil, err
		}
	}
	var resp deviceListResponse
	if err := c.post("/deviceList", struct{}{}, &resp); err != nil {
		return nil, err
	}
	devices := make([]*Device, 0, len(resp.Devices))
	for _, info := range resp.Devices {
		devices = append(devices, &Device{
			client:  c,
			id:      info.IDDevice,
			name:    info.Name,
			product: info.NameProduct,
		})
	}
	return devices, nil
}

type bufferRequest struct {
	IDDevice string `json:"id_device"`
}

func (c *Client) readBuffer(id string) (registers, error) {
	var regs registers
	err := c.post("/deviceGetBufferReaded", bufferRequest{IDDevice: id}, &regs)
	return regs, err
}

type writeRequest struct {
	IDDevice string      `json:"id_device"`
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
}

func (c *Client) writeRegister(id, key string, value interface{}) error {
	return c.post("/deviceRequestWriting", writeRequest{IDDevice: id, Key: key, Value: value}, nil)
}

// post runs one JSON round trip and maps failures onto the package error
// types: transport problems become ConnectionError, 401 becomes
// UnauthorizedError, every other non-2xx status becomes Error.
func (c *Client) post(endpoint string, body, out interface{}) (err error) {
	if c.observer != nil {
		defer func() { c.observer(endpoint, err) }()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Message: fmt.Sprintf("encoding %s request: %v", endpoint, err)}
	}

	url := c.apiRoot + endpoint
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Message: fmt.Sprintf("building %s request: %v", endpoint, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Customer-Code", c.customerCode)
	req.Header.Set("Launcher-UUID", c.uuid)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &UnauthorizedError{Email: c.email}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Message: fmt.Sprintf("decoding %s response: %v", endpoint, err)}
	}
	return nil
}
