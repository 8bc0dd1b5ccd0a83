// Package di provides dependency injection container
package di

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/metrics"
	"github.com/ssargent/tether/pkg/operator"
	"github.com/ssargent/tether/pkg/storage"
	"github.com/ssargent/tether/pkg/stream"
	"github.com/ssargent/tether/pkg/worker"
)

// ChannelOpener opens the transport of a worker session
type ChannelOpener func(opts channel.Options) (channel.Channel, error)

// StoreOpener opens a segment archive
type StoreOpener func(dir string) (*storage.SegmentStore, error)

// Container holds all the dependencies for the application
type Container struct {
	registry      *operator.Registry
	channelOpener ChannelOpener
	storeOpener   StoreOpener
	promRegistry  *prometheus.Registry

	metricsOnce sync.Once
	metrics     *metrics.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Container{
		registry:      operator.NewRegistry(),
		channelOpener: channel.Open,
		storeOpener:   storage.NewSegmentStore,
		promRegistry:  reg,
	}
}

// GetRegistry returns the operator registry
func (c *Container) GetRegistry() *operator.Registry {
	return c.registry
}

// GetMetrics returns the worker metrics, registering them on first use
func (c *Container) GetMetrics() *metrics.Metrics {
	c.metricsOnce.Do(func() {
		c.metrics = metrics.NewMetrics(c.promRegistry)
	})
	return c.metrics
}

// OpenChannel opens the transport described by cfg
func (c *Container) OpenChannel(cfg config.Transport) (channel.Channel, error) {
	return c.channelOpener(channel.Options{
		Kind:       channel.Kind(cfg.Kind),
		Address:    cfg.Address,
		InputPath:  cfg.InputPath,
		OutputPath: cfg.OutputPath,
		SignalAddr: cfg.SignalAddr,
		NotifyAddr: cfg.NotifyAddr,
	})
}

// OpenStore opens the segment archive in dir
func (c *Container) OpenStore(dir string) (*storage.SegmentStore, error) {
	return c.storeOpener(dir)
}

// NewWorker creates a worker over ch using the container's registry
func (c *Container) NewWorker(cfg *config.Config, ch channel.Channel, observer stream.Observer, logger *slog.Logger) *worker.Worker {
	return worker.New(cfg, ch, c.registry, observer, logger)
}

// SetRegistry allows overriding the operator registry (for testing)
func (c *Container) SetRegistry(registry *operator.Registry) {
	c.registry = registry
}

// SetChannelOpener allows overriding the transport (for testing)
func (c *Container) SetChannelOpener(opener ChannelOpener) {
	c.channelOpener = opener
}

// SetStoreOpener allows overriding the segment archive (for testing)
func (c *Container) SetStoreOpener(opener StoreOpener) {
	c.storeOpener = opener
}
