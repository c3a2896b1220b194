package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/validations"
	"github.com/sirupsen/logrus"
)

// Factory builds one adapter variant from a connection descriptor.
type Factory func(desc channel.ConnectionDescriptor) (channel.Adapter, error)

// Stats is the introspection shape for operational dashboards.
type Stats struct {
	Total          int                         `json:"total"`
	Connected      int                         `json:"connected"`
	CountByChannel map[channel.ChannelType]int `json:"count_by_channel"`
}

// Registry creates, caches and evicts exactly one adapter instance per
// connection id for the lifetime of the process. It is an explicit, injectable
// object: construct one at process start, RemoveAdapter on disconnect,
// ClearAll on shutdown or test teardown.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[uint]channel.Adapter
	factories map[channel.ChannelType]Factory
}

func New() *Registry {
	return &Registry{
		adapters:  make(map[uint]channel.Adapter),
		factories: make(map[channel.ChannelType]Factory),
	}
}

// RegisterFactory binds a channel type to its adapter constructor.
func (r *Registry) RegisterFactory(chType channel.ChannelType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[chType] = factory
}

// CreateAdapter returns the cached instance for the descriptor's connection
// id, or validates credentials and constructs the matching variant. The
// create-or-return is atomic: two concurrent first-use callers for the same id
// observe the same instance.
func (r *Registry) CreateAdapter(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[desc.ID]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	if err := validations.ValidateCredentials(desc); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if adapter, ok := r.adapters[desc.ID]; ok {
		return adapter, nil
	}

	factory, ok := r.factories[desc.Type]
	if !ok {
		return nil, fmt.Errorf("no factory registered for channel type %s", desc.Type)
	}

	adapter, err := factory(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter for connection %d: %w", desc.ID, err)
	}

	r.adapters[desc.ID] = adapter
	logrus.WithFields(logrus.Fields{
		"connection_id": desc.ID,
		"channel":       desc.Type,
	}).Info("[REGISTRY] Adapter created")
	return adapter, nil
}

// GetAdapter returns the cached adapter without constructing anything.
func (r *Registry) GetAdapter(id uint) (channel.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// RemoveAdapter evicts the instance for id. It deliberately does NOT call
// Disconnect: eviction and transport teardown are decoupled so callers
// control the ordering.
func (r *Registry) RemoveAdapter(id uint) {
	r.mu.Lock()
	_, ok := r.adapters[id]
	delete(r.adapters, id)
	r.mu.Unlock()

	if ok {
		logrus.WithField("connection_id", id).Info("[REGISTRY] Adapter evicted")
	}
}

// ClearAll evicts every adapter. Used on shutdown and test teardown.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = make(map[uint]channel.Adapter)
}

// Shutdown disconnects every cached adapter, then clears the cache.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	adapters := make([]channel.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.RUnlock()

	for _, a := range adapters {
		if err := a.Disconnect(ctx); err != nil {
			logrus.WithError(err).WithField("connection_id", a.ID()).Warn("[REGISTRY] Disconnect failed during shutdown")
		}
	}
	r.ClearAll()
}

// GetAdapters returns a snapshot of every cached adapter.
func (r *Registry) GetAdapters() []channel.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]channel.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		res = append(res, a)
	}
	return res
}

// GetStats reports adapter counts by channel and the connected count.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{CountByChannel: make(map[channel.ChannelType]int)}
	for _, a := range r.adapters {
		stats.Total++
		stats.CountByChannel[a.Type()]++
		if a.Status() == channel.StatusConnected {
			stats.Connected++
		}
	}
	return stats
}
