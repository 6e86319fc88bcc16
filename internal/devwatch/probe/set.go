package probe

import (
	"context"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// The facet sources a snapshot is assembled from
type (
	ProcessSource interface {
		Probe(ctx context.Context) map[string]types.Process
	}
	NetworkSource interface {
		Probe(ctx context.Context) []types.Endpoint
	}
	QualitySource interface {
		Probe(ctx context.Context) types.Quality
	}
	VCSSource interface {
		Probe(ctx context.Context) types.VersionControl
	}
	StructureSource interface {
		Probe(ctx context.Context) types.Structure
	}
)

// Set is the full collection of probes
type Set struct {
	Processes ProcessSource
	Network   NetworkSource
	Quality   QualitySource
	VCS       VCSSource
	Structure StructureSource
}

// Options configures NewSet
type Options struct {
	Root            string
	Runner          Runner
	Cache           *cache.Cache
	Host            string
	Endpoints       []EndpointSpec
	EndpointTimeout time.Duration
	Timeouts        QualityTimeouts
}

// NewSet wires the default probes for the project at opts.Root
func NewSet(opts Options) Set {
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return Set{
		Processes: NewProcessProbe(runner),
		Network:   NewNetworkProbe(opts.Host, opts.Endpoints, opts.EndpointTimeout),
		Quality:   NewQualityProbe(opts.Root, runner, opts.Timeouts, opts.Cache),
		VCS:       NewVCSProbe(opts.Root, runner),
		Structure: NewStructureProbe(opts.Root, opts.Cache),
	}
}
