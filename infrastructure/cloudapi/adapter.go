package cloudapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/sirupsen/logrus"
)

// Adapter speaks the official WhatsApp Business Cloud API. There is no
// persistent transport; each operation is an independent authenticated HTTP
// call, so status only tracks whether Initialize ran.
type Adapter struct {
	*channel.Emitter

	connectionID uint
	desc         channel.ConnectionDescriptor
	client       *Client
	store        channel.ConnectionStore
	cfg          *config.CloudAPIConfig

	mu     sync.RWMutex
	status channel.ConnectionStatus
}

// NewAdapter wires the cloud variant. store may be nil; provisioning info is
// then only logged, never written back.
func NewAdapter(desc channel.ConnectionDescriptor, store channel.ConnectionStore, cfg *config.CloudAPIConfig, dispatcher channel.Dispatcher) *Adapter {
	return &Adapter{
		Emitter:      channel.NewEmitter(desc.ID, dispatcher),
		connectionID: desc.ID,
		desc:         desc,
		client:       NewClient(cfg.BaseURL, cfg.APIVersion, desc.Credentials.Token),
		store:        store,
		cfg:          cfg,
		status:       channel.StatusDisconnected,
	}
}

func (ca *Adapter) ID() uint                         { return ca.connectionID }
func (ca *Adapter) Type() channel.ChannelType        { return channel.TypeWhatsAppCloud }
func (ca *Adapter) Status() channel.ConnectionStatus {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	return ca.status
}

func (ca *Adapter) Supports(kind message.Kind) bool {
	switch kind {
	case message.KindText, message.KindMedia, message.KindButtons,
		message.KindList, message.KindContact, message.KindTemplate:
		return true
	}
	return false
}

// Initialize runs the idempotent provisioning sequence. Subscription and PIN
// registration failures are warnings only: the account may already be
// provisioned from a prior run, and the adapter is usable either way.
func (ca *Adapter) Initialize(ctx context.Context) error {
	ca.setStatus(channel.StatusConnecting)

	creds := ca.desc.Credentials
	if err := ca.client.PostJSON(ctx, creds.BusinessID+"/subscribed_apps", nil, nil); err != nil {
		logrus.WithError(err).WithField("connection_id", ca.connectionID).
			Warn("[CLOUDAPI] App subscription call failed, account may already be subscribed")
	}

	if creds.TwoFactorPIN != "" {
		body := map[string]string{"messaging_product": "whatsapp", "pin": creds.TwoFactorPIN}
		if err := ca.client.PostJSON(ctx, creds.PhoneNumberID+"/register", body, nil); err != nil {
			logrus.WithError(err).WithField("connection_id", ca.connectionID).
				Warn("[CLOUDAPI] Phone registration failed, number may already be registered")
		}
	}

	info, err := ca.fetchPhoneInfo(ctx)
	if err != nil {
		ca.setStatus(channel.StatusDisconnected)
		return err
	}
	ca.writeBackProvisioning(info)

	ca.setStatus(channel.StatusConnected)
	logrus.WithFields(logrus.Fields{
		"connection_id": ca.connectionID,
		"phone_number":  info.PhoneNumber,
	}).Info("[CLOUDAPI] Adapter initialized")
	return nil
}

func (ca *Adapter) fetchPhoneInfo(ctx context.Context) (channel.ProvisioningInfo, error) {
	var out struct {
		VerifiedName       string `json:"verified_name"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		QualityRating      string `json:"quality_rating"`
		ID                 string `json:"id"`
	}
	path := ca.desc.Credentials.PhoneNumberID + "?fields=verified_name,display_phone_number,quality_rating"
	if err := ca.client.GetJSON(ctx, path, &out); err != nil {
		return channel.ProvisioningInfo{}, fmt.Errorf("phone number lookup failed: %w", err)
	}
	return channel.ProvisioningInfo{
		PhoneNumberID: ca.desc.Credentials.PhoneNumberID,
		BusinessID:    ca.desc.Credentials.BusinessID,
		PhoneNumber:   out.DisplayPhoneNumber,
		Status:        channel.StatusConnected,
	}, nil
}

// writeBackProvisioning persists the resolved phone data to the connection
// record. Connectivity is still usable if the write fails.
func (ca *Adapter) writeBackProvisioning(info channel.ProvisioningInfo) {
	if ca.store == nil {
		return
	}
	if err := ca.store.UpdateProvisioning(ca.connectionID, info); err != nil {
		logrus.WithError(err).WithField("connection_id", ca.connectionID).
			Warn("[CLOUDAPI] Failed to persist provisioning info")
	}
}

func (ca *Adapter) Disconnect(_ context.Context) error {
	ca.setStatus(channel.StatusDisconnected)
	return nil
}

func (ca *Adapter) setStatus(status channel.ConnectionStatus) {
	ca.mu.Lock()
	changed := ca.status != status
	ca.status = status
	ca.mu.Unlock()

	if changed {
		ca.EmitStatus(status)
	}
}
