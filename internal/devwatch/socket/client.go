package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds a client round trip
const DefaultTimeout = 30 * time.Second

// Client talks to a running monitor
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// SetTimeout sets the connection timeout for the client
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send issues one command and returns the raw response
func (c *Client) Send(action string, data map[string]interface{}) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to monitor socket %s: %w", c.socketPath, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(Command{Action: action, Data: data}); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var response Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}

// Call issues a command, fails on an unsuccessful response and decodes
// the payload into out when out is non-nil
func (c *Client) Call(action string, data map[string]interface{}, out interface{}) error {
	resp, err := c.Send(action, data)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("%s failed", action)
		}
		return errors.New(resp.Error)
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Ping checks that the monitor answers
func (c *Client) Ping() error {
	return c.Call(ActionPing, nil, nil)
}

// Status fetches the monitor's status summary into out
func (c *Client) Status(out interface{}) error {
	return c.Call(ActionStatus, nil, out)
}

// Scan asks the monitor for a snapshot; fresh bypasses its cache
func (c *Client) Scan(fresh bool, out interface{}) error {
	return c.Call(ActionScan, map[string]interface{}{"fresh": fresh}, out)
}

// Events fetches recent events. kind filters when non-empty.
func (c *Client) Events(limit int, kind string, out interface{}) error {
	data := map[string]interface{}{"limit": limit}
	if kind != "" {
		data["kind"] = kind
	}
	return c.Call(ActionEvents, data, out)
}

// Stop asks the monitor to shut down
func (c *Client) Stop() error {
	return c.Call(ActionStop, nil, nil)
}

// IsRunning reports whether a monitor answers on the socket
func (c *Client) IsRunning() bool {
	return c.Ping() == nil
}

// WaitForMonitor polls until the monitor answers or maxWait elapses
func (c *Client) WaitForMonitor(maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		if c.IsRunning() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("monitor did not become available within %v", maxWait)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
