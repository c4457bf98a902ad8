// Package metrics provides Prometheus instruments for TreeFS components.
//
// All metrics are optional: a nil *RegistryMetrics is a valid no-op
// receiver, so components can be wired with or without metrics collection.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call
// multiple times; only the first call has an effect.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil if InitRegistry was
// never called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// RegistryMetrics instruments the filesystem registry.
type RegistryMetrics struct {
	filesystems prometheus.Gauge
	endpoints   prometheus.Gauge
	creates     prometheus.Counter
	deletes     prometheus.Counter
}

// NewRegistryMetrics creates registry instruments bound to the global
// Prometheus registry. Returns nil (a valid no-op) if InitRegistry was
// never called.
func NewRegistryMetrics() *RegistryMetrics {
	if registry == nil {
		return nil
	}

	m := &RegistryMetrics{
		filesystems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treefs_filesystems",
			Help: "Number of registered filesystems.",
		}),
		endpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treefs_endpoints",
			Help: "Number of active endpoint bindings.",
		}),
		creates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treefs_filesystem_creates_total",
			Help: "Total number of successful filesystem creations.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treefs_filesystem_deletes_total",
			Help: "Total number of successful filesystem deletions.",
		}),
	}

	registry.MustRegister(m.filesystems, m.endpoints, m.creates, m.deletes)
	return m
}

// FilesystemCreated records a successful filesystem creation.
func (m *RegistryMetrics) FilesystemCreated() {
	if m == nil {
		return
	}
	m.filesystems.Inc()
	m.creates.Inc()
}

// FilesystemDeleted records a successful filesystem deletion.
func (m *RegistryMetrics) FilesystemDeleted() {
	if m == nil {
		return
	}
	m.filesystems.Dec()
	m.deletes.Inc()
}

// EndpointCreated records a new endpoint binding.
func (m *RegistryMetrics) EndpointCreated() {
	if m == nil {
		return
	}
	m.endpoints.Inc()
}

// EndpointDeleted records a removed endpoint binding.
func (m *RegistryMetrics) EndpointDeleted() {
	if m == nil {
		return
	}
	m.endpoints.Dec()
}

// SetFilesystems sets the filesystem gauge, used after startup enumeration
// and shutdown.
func (m *RegistryMetrics) SetFilesystems(n int) {
	if m == nil {
		return
	}
	m.filesystems.Set(float64(n))
}

// SetEndpoints sets the endpoint gauge.
func (m *RegistryMetrics) SetEndpoints(n int) {
	if m == nil {
		return
	}
	m.endpoints.Set(float64(n))
}
