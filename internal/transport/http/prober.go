package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
)

// DefaultProbeInterval is used when the prober is created with a zero interval.
const DefaultProbeInterval = 30 * time.Second

// UpstreamProber periodically pings the upstream APIs and serves the last
// result as a readiness check.
type UpstreamProber struct {
	upstreams []transport.Pinger
	interval  time.Duration

	mu      sync.RWMutex
	probed  bool
	lastErr map[string]error
}

// NewUpstreamProber creates a prober over the given upstreams
func NewUpstreamProber(interval time.Duration, upstreams ...transport.Pinger) *UpstreamProber {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &UpstreamProber{
		upstreams: upstreams,
		interval:  interval,
		lastErr:   make(map[string]error, len(upstreams)),
	}
}

// Start begins the probe loop. It implements manager.Runnable.
func (p *UpstreamProber) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("upstream-prober")
	logger.Info("Starting upstream prober", "interval", p.interval, "upstreams", len(p.upstreams))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial probe
	p.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping upstream prober")
			return nil
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

// NeedLeaderElection reports that every replica probes its own upstreams
func (p *UpstreamProber) NeedLeaderElection() bool {
	return false
}

func (p *UpstreamProber) probe(ctx context.Context) {
	logger := log.FromContext(ctx).WithName("upstream-prober")

	results := make(map[string]error, len(p.upstreams))
	for _, upstream := range p.upstreams {
		err := upstream.Ping(ctx)
		if err != nil {
			logger.Error(err, "Upstream unreachable", "upstream", upstream.Name())
		}
		results[upstream.Name()] = err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for name, err := range results {
		if err == nil && p.lastErr[name] != nil {
			logger.Info("Upstream reachable again", "upstream", name)
		}
		p.lastErr[name] = err
	}
	p.probed = true
}

// Check implements healthz.Checker over the last probe results
func (p *UpstreamProber) Check(_ *http.Request) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.probed {
		return errors.New("upstreams not probed yet")
	}

	var errs []error
	for _, upstream := range p.upstreams {
		if err := p.lastErr[upstream.Name()]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", upstream.Name(), err))
		}
	}
	return errors.Join(errs...)
}
