package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc serves one action. The returned value becomes Response.Data.
type HandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Router dispatches commands by action name
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRouter creates a router that already answers ping
func NewRouter() *Router {
	r := &Router{handlers: make(map[string]HandlerFunc)}
	r.Handle(ActionPing, func(context.Context, Command) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})
	return r
}

// Handle registers fn for action, replacing any previous handler
func (r *Router) Handle(action string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = fn
}

// Actions lists the registered actions
func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// HandleCommand implements CommandHandler
func (r *Router) HandleCommand(ctx context.Context, cmd Command) (resp Response) {
	r.mu.RLock()
	fn, ok := r.handlers[cmd.Action]
	r.mu.RUnlock()
	if !ok {
		return Response{Success: false, Error: fmt.Sprintf("Unknown command: %s", cmd.Action)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			resp = Response{Success: false, Error: fmt.Sprintf("%s failed: %v", cmd.Action, rec)}
		}
	}()

	result, err := fn(ctx, cmd)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	resp = Response{Success: true, Message: cmd.Action + " ok"}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return Response{Success: false, Error: fmt.Sprintf("failed to encode %s result: %v", cmd.Action, err)}
		}
		resp.Data = data
	}
	return resp
}
