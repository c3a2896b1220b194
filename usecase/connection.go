package usecase

import (
	"context"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

// ConnectionRepository is the persistence surface the lifecycle usecase needs.
type ConnectionRepository interface {
	Create(ctx context.Context, desc channel.ConnectionDescriptor) (channel.ConnectionDescriptor, error)
	GetByID(ctx context.Context, id uint) (channel.ConnectionDescriptor, error)
	List(ctx context.Context) ([]channel.ConnectionDescriptor, error)
	Delete(ctx context.Context, id uint) error
}

// ConnectionStatus is the REST-facing status shape for one connection.
type ConnectionStatus struct {
	ID     uint                     `json:"id"`
	Name   string                   `json:"name"`
	Type   channel.ChannelType      `json:"type"`
	Status channel.ConnectionStatus `json:"status"`
}

type IConnectionUsecase interface {
	Create(ctx context.Context, desc channel.ConnectionDescriptor) (ConnectionStatus, error)
	Initialize(ctx context.Context, id uint) (ConnectionStatus, error)
	List(ctx context.Context) ([]ConnectionStatus, error)
	Status(ctx context.Context, id uint) (ConnectionStatus, error)
	Remove(ctx context.Context, id uint) error
	ProfileInfo(ctx context.Context, id uint, addr string) (*channel.ProfileInfo, error)
	RestoreAll(ctx context.Context)
}

type serviceConnection struct {
	repo     ConnectionRepository
	registry *registry.Registry
}

func NewConnectionService(repo ConnectionRepository, reg *registry.Registry) IConnectionUsecase {
	return &serviceConnection{repo: repo, registry: reg}
}

// Create persists the descriptor, builds the adapter and initializes it. A
// failed initialize leaves the record in place and the adapter evicted, so a
// later Initialize call starts clean.
func (service serviceConnection) Create(ctx context.Context, desc channel.ConnectionDescriptor) (ConnectionStatus, error) {
	saved, err := service.repo.Create(ctx, desc)
	if err != nil {
		return ConnectionStatus{}, err
	}
	return service.Initialize(ctx, saved.ID)
}

func (service serviceConnection) Initialize(ctx context.Context, id uint) (ConnectionStatus, error) {
	desc, err := service.repo.GetByID(ctx, id)
	if err != nil {
		return ConnectionStatus{}, err
	}

	adapter, err := service.registry.CreateAdapter(desc)
	if err != nil {
		return ConnectionStatus{}, err
	}

	if err := adapter.Initialize(ctx); err != nil {
		service.registry.RemoveAdapter(id)
		return ConnectionStatus{}, err
	}

	logrus.WithFields(logrus.Fields{
		"connection_id": id,
		"channel":       desc.Type,
	}).Info("[CONNECTION] Initialized")

	return statusOf(adapter, desc), nil
}

func (service serviceConnection) List(ctx context.Context) ([]ConnectionStatus, error) {
	descs, err := service.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]ConnectionStatus, 0, len(descs))
	for _, desc := range descs {
		status := ConnectionStatus{ID: desc.ID, Name: desc.Name, Type: desc.Type, Status: channel.StatusDisconnected}
		if adapter, ok := service.registry.GetAdapter(desc.ID); ok {
			status.Status = adapter.Status()
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (service serviceConnection) Status(ctx context.Context, id uint) (ConnectionStatus, error) {
	desc, err := service.repo.GetByID(ctx, id)
	if err != nil {
		return ConnectionStatus{}, err
	}
	status := ConnectionStatus{ID: desc.ID, Name: desc.Name, Type: desc.Type, Status: channel.StatusDisconnected}
	if adapter, ok := service.registry.GetAdapter(id); ok {
		status.Status = adapter.Status()
	}
	return status, nil
}

// Remove disconnects the live adapter, evicts it and deletes the record.
func (service serviceConnection) Remove(ctx context.Context, id uint) error {
	if adapter, ok := service.registry.GetAdapter(id); ok {
		if err := adapter.Disconnect(ctx); err != nil {
			logrus.WithError(err).WithField("connection_id", id).Warn("[CONNECTION] Disconnect failed during removal")
		}
	}
	service.registry.RemoveAdapter(id)
	return service.repo.Delete(ctx, id)
}

func (service serviceConnection) ProfileInfo(ctx context.Context, id uint, addr string) (*channel.ProfileInfo, error) {
	adapter, ok := service.registry.GetAdapter(id)
	if !ok {
		return nil, apperror.New(apperror.CodeConfiguration, "no adapter for connection")
	}
	return adapter.GetProfileInfo(ctx, addr), nil
}

// RestoreAll rebuilds and initializes adapters for every persisted connection
// at process start. Failures are logged per connection and never abort the
// others.
func (service serviceConnection) RestoreAll(ctx context.Context) {
	descs, err := service.repo.List(ctx)
	if err != nil {
		logrus.WithError(err).Error("[CONNECTION] Could not list connections for restore")
		return
	}

	for _, desc := range descs {
		if _, err := service.Initialize(ctx, desc.ID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"connection_id": desc.ID,
				"channel":       desc.Type,
			}).Warn("[CONNECTION] Restore failed")
		}
	}
}

func statusOf(adapter channel.Adapter, desc channel.ConnectionDescriptor) ConnectionStatus {
	return ConnectionStatus{ID: desc.ID, Name: desc.Name, Type: desc.Type, Status: adapter.Status()}
}
