package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultEndpointTimeout bounds each endpoint request
const DefaultEndpointTimeout = 1500 * time.Millisecond

// EndpointSpec names one well-known local port
type EndpointSpec struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

// DefaultEndpoints is the fixed probe order
var DefaultEndpoints = []EndpointSpec{
	{Name: "vite", Port: 5173},
	{Name: "astro", Port: 4321},
	{Name: "next", Port: 3000},
	{Name: "convex", Port: 3210},
	{Name: "http-8080", Port: 8080},
	{Name: "http-8000", Port: 8000},
}

// NetworkProbe checks local endpoints concurrently
type NetworkProbe struct {
	Host      string
	Endpoints []EndpointSpec
	Timeout   time.Duration
	client    *req.Client
}

// NewNetworkProbe creates a probe over the given endpoints. Empty values
// fall back to localhost, DefaultEndpoints and DefaultEndpointTimeout.
func NewNetworkProbe(host string, endpoints []EndpointSpec, timeout time.Duration) *NetworkProbe {
	if host == "" {
		host = "localhost"
	}
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	if timeout <= 0 {
		timeout = DefaultEndpointTimeout
	}
	client := req.C().
		SetUserAgent("devwatch").
		SetTimeout(timeout).
		DisableKeepAlives()

	return &NetworkProbe{
		Host:      host,
		Endpoints: endpoints,
		Timeout:   timeout,
		client:    client,
	}
}

// Healthy reports whether a status code counts as a live dev server.
// 404 is accepted since many dev servers have no root route.
func Healthy(status int) bool {
	return status == http.StatusOK || status == http.StatusNotFound
}

// Probe returns one entry per configured endpoint, in configured order
func (p *NetworkProbe) Probe(ctx context.Context) []types.Endpoint {
	out := make([]types.Endpoint, len(p.Endpoints))

	var wg sync.WaitGroup
	for i, spec := range p.Endpoints {
		wg.Add(1)
		go func(i int, spec EndpointSpec) {
			defer wg.Done()
			out[i] = p.check(ctx, spec)
		}(i, spec)
	}
	wg.Wait()

	return out
}

func (p *NetworkProbe) check(ctx context.Context, spec EndpointSpec) types.Endpoint {
	ep := types.Endpoint{Name: spec.Name, Port: spec.Port}
	url := fmt.Sprintf("http://%s:%d/", p.Host, spec.Port)

	reqCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	resp, err := p.client.R().SetContext(reqCtx).Get(url)
	if err != nil {
		log.DebugH3("%s offline: %v", url, err)
		ep.Offline = true
		return ep
	}

	ep.StatusCode = resp.GetStatusCode()
	ep.Healthy = Healthy(ep.StatusCode)
	return ep
}
