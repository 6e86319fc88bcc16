// Package socket is the control channel between the CLI and a running
// monitor: newline delimited JSON commands over a Unix socket
package socket

import (
	"encoding/json"
	"fmt"
)

// Control actions understood by the monitor
const (
	ActionPing   = "ping"
	ActionStatus = "status"
	ActionScan   = "scan"
	ActionEvents = "events"
	ActionStop   = "stop"
)

// Command is one request sent to the monitor
type Command struct {
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Response answers a Command. Data holds the action's JSON encoded result.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode unmarshals the response payload into out
func (r *Response) Decode(out interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Int reads an integer argument, accepting JSON numbers
func (c Command) Int(key string, def int) int {
	switch v := c.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// String reads a string argument
func (c Command) String(key string) string {
	s, _ := c.Data[key].(string)
	return s
}

// Bool reads a boolean argument
func (c Command) Bool(key string) bool {
	b, _ := c.Data[key].(bool)
	return b
}
