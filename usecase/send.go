package usecase

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/omnidesk/omnibridge/validations"
	"github.com/sirupsen/logrus"
)

// ISendUsecase is the surface the REST layer talks to: validate, resolve the
// adapter, invoke the capability.
type ISendUsecase interface {
	Send(ctx context.Context, connectionID uint, req message.SendRequest) (message.Normalized, error)
	Edit(ctx context.Context, connectionID uint, to, messageID, newBody string, sentAt time.Time) (message.Normalized, error)
	Delete(ctx context.Context, connectionID uint, to, messageID string, sentAt time.Time) error
	MarkAsRead(ctx context.Context, connectionID uint, addr string, messageIDs []string)
	SendPresence(ctx context.Context, connectionID uint, addr string, typing bool)
}

type serviceSend struct {
	registry  *registry.Registry
	metaStore message.MetaStore
}

func NewSendService(reg *registry.Registry, metaStore message.MetaStore) ISendUsecase {
	return &serviceSend{registry: reg, metaStore: metaStore}
}

func (service serviceSend) adapterFor(connectionID uint) (channel.Adapter, error) {
	adapter, ok := service.registry.GetAdapter(connectionID)
	if !ok {
		return nil, apperror.New(apperror.CodeConfiguration, "no adapter for connection")
	}
	return adapter, nil
}

// Send validates the request, dispatches to the connection's adapter and
// records delivery metadata asynchronously for later quoted replies.
func (service serviceSend) Send(ctx context.Context, connectionID uint, req message.SendRequest) (message.Normalized, error) {
	if err := validations.ValidateSendRequest(ctx, req); err != nil {
		return message.Normalized{}, err
	}
	adapter, err := service.adapterFor(connectionID)
	if err != nil {
		return message.Normalized{}, err
	}

	logrus.WithFields(logrus.Fields{
		"connection_id": connectionID,
		"channel":       adapter.Type(),
		"kind":          req.Kind,
	}).Debug("[SEND] Dispatching message")

	normalized, err := adapter.SendMessage(ctx, req)
	if err != nil {
		return message.Normalized{}, err
	}

	service.rememberMeta(connectionID, normalized)
	return normalized, nil
}

func (service serviceSend) Edit(ctx context.Context, connectionID uint, to, messageID, newBody string, sentAt time.Time) (message.Normalized, error) {
	adapter, err := service.adapterFor(connectionID)
	if err != nil {
		return message.Normalized{}, err
	}
	return adapter.EditMessage(ctx, to, messageID, newBody, sentAt)
}

func (service serviceSend) Delete(ctx context.Context, connectionID uint, to, messageID string, sentAt time.Time) error {
	adapter, err := service.adapterFor(connectionID)
	if err != nil {
		return err
	}
	return adapter.DeleteMessage(ctx, to, messageID, sentAt)
}

func (service serviceSend) MarkAsRead(ctx context.Context, connectionID uint, addr string, messageIDs []string) {
	adapter, err := service.adapterFor(connectionID)
	if err != nil {
		logrus.WithError(err).Debug("[SEND] Skipping markAsRead for unknown connection")
		return
	}
	adapter.MarkAsRead(ctx, addr, messageIDs)
}

func (service serviceSend) SendPresence(ctx context.Context, connectionID uint, addr string, typing bool) {
	adapter, err := service.adapterFor(connectionID)
	if err != nil {
		logrus.WithError(err).Debug("[SEND] Skipping presence for unknown connection")
		return
	}
	adapter.SendPresenceUpdate(ctx, addr, typing)
}

// rememberMeta stores delivery metadata off the request path; a failure only
// costs quote resolution later.
func (service serviceSend) rememberMeta(connectionID uint, normalized message.Normalized) {
	if service.metaStore == nil || normalized.ID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		meta := message.Meta{
			ConnectionID: connectionID,
			MessageID:    normalized.ID,
			ChatJID:      normalized.To,
			Sender:       normalized.From,
			FromMe:       normalized.FromMe,
			SentAt:       time.UnixMilli(normalized.Timestamp),
		}
		if err := service.metaStore.Save(ctx, meta); err != nil {
			logrus.WithError(err).Debug("[SEND] Failed to store message metadata")
		}
	}()
}
