package meta

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

// Adapter serves one Messenger or Instagram Direct connection. The two
// variants share the graph wire shape; targetNode and the capability limits
// are the only differences, so they run on one implementation selected by the
// constructor.
type Adapter struct {
	*channel.Emitter

	connectionID uint
	desc         channel.ConnectionDescriptor
	client       *Client
	channelType  channel.ChannelType
	targetNode   string

	mu     sync.RWMutex
	status channel.ConnectionStatus
}

// NewFacebookAdapter builds the Messenger variant bound to a page id.
func NewFacebookAdapter(desc channel.ConnectionDescriptor, cfg *config.MetaConfig, dispatcher channel.Dispatcher) *Adapter {
	return newAdapter(desc, cfg, dispatcher, channel.TypeFacebook, desc.Credentials.PageID)
}

// NewInstagramAdapter builds the Instagram Direct variant bound to a
// professional account id.
func NewInstagramAdapter(desc channel.ConnectionDescriptor, cfg *config.MetaConfig, dispatcher channel.Dispatcher) *Adapter {
	return newAdapter(desc, cfg, dispatcher, channel.TypeInstagram, desc.Credentials.InstagramID)
}

func newAdapter(desc channel.ConnectionDescriptor, cfg *config.MetaConfig, dispatcher channel.Dispatcher, channelType channel.ChannelType, targetNode string) *Adapter {
	return &Adapter{
		Emitter:      channel.NewEmitter(desc.ID, dispatcher),
		connectionID: desc.ID,
		desc:         desc,
		client:       NewClient(cfg.GraphBaseURL, cfg.APIVersion, desc.Credentials.Token),
		channelType:  channelType,
		targetNode:   targetNode,
		status:       channel.StatusDisconnected,
	}
}

func (ma *Adapter) ID() uint                         { return ma.connectionID }
func (ma *Adapter) Type() channel.ChannelType        { return ma.channelType }
func (ma *Adapter) Status() channel.ConnectionStatus {
	ma.mu.RLock()
	defer ma.mu.RUnlock()
	return ma.status
}

// Both variants are text-and-media channels. Interactive content and
// templates have no graph equivalent here.
func (ma *Adapter) Supports(kind message.Kind) bool {
	return kind == message.KindText || kind == message.KindMedia
}

// Initialize verifies the token by resolving the bound account node.
func (ma *Adapter) Initialize(ctx context.Context) error {
	ma.setStatus(channel.StatusConnecting)

	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := ma.client.GetJSON(ctx, ma.targetNode+"?fields=id,name", &out); err != nil {
		ma.setStatus(channel.StatusDisconnected)
		return apperror.InitFailure(fmt.Sprintf("%s account lookup failed", ma.channelType), err)
	}

	ma.setStatus(channel.StatusConnected)
	logrus.WithFields(logrus.Fields{
		"connection_id": ma.connectionID,
		"channel":       ma.channelType,
		"account":       out.Name,
	}).Info("[META] Adapter initialized")
	return nil
}

func (ma *Adapter) Disconnect(_ context.Context) error {
	ma.setStatus(channel.StatusDisconnected)
	return nil
}

func (ma *Adapter) setStatus(status channel.ConnectionStatus) {
	ma.mu.Lock()
	changed := ma.status != status
	ma.status = status
	ma.mu.Unlock()

	if changed {
		ma.EmitStatus(status)
	}
}

func (ma *Adapter) DeleteMessage(_ context.Context, _, _ string, _ time.Time) error {
	return apperror.DeleteNotSupported(string(ma.channelType))
}

func (ma *Adapter) EditMessage(_ context.Context, _, _, _ string, _ time.Time) (message.Normalized, error) {
	return message.Normalized{}, apperror.EditNotSupported(string(ma.channelType))
}

// GetProfileInfo resolves the remote party's public profile; best-effort.
func (ma *Adapter) GetProfileInfo(ctx context.Context, addr string) *channel.ProfileInfo {
	id, err := address.NormalizePlatformID(addr)
	if err != nil {
		return nil
	}
	var out struct {
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Name       string `json:"name"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := ma.client.GetJSON(ctx, id+"?fields=first_name,last_name,name,profile_pic", &out); err != nil {
		logrus.WithError(err).WithField("connection_id", ma.connectionID).
			Debug("[META] Profile lookup failed")
		return nil
	}
	name := out.Name
	if name == "" {
		name = strings.TrimSpace(out.FirstName + " " + out.LastName)
	}
	if name == "" && out.ProfilePic == "" {
		return nil
	}
	return &channel.ProfileInfo{Name: name, PictureURL: out.ProfilePic}
}

func (ma *Adapter) GetProfilePicture(ctx context.Context, addr string) *string {
	info := ma.GetProfileInfo(ctx, addr)
	if info == nil || info.PictureURL == "" {
		return nil
	}
	return &info.PictureURL
}

// The graph surface has no status-text concept.
func (ma *Adapter) GetStatus(_ context.Context, _ string) *string { return nil }

// MarkAsRead forwards the mark_seen sender action; advisory.
func (ma *Adapter) MarkAsRead(ctx context.Context, addr string, _ []string) {
	ma.senderAction(ctx, addr, "mark_seen")
}

// SendPresenceUpdate forwards typing_on/typing_off; advisory.
func (ma *Adapter) SendPresenceUpdate(ctx context.Context, addr string, typing bool) {
	action := "typing_off"
	if typing {
		action = "typing_on"
	}
	ma.senderAction(ctx, addr, action)
}

func (ma *Adapter) senderAction(ctx context.Context, addr, action string) {
	id, err := address.NormalizePlatformID(addr)
	if err != nil {
		logrus.WithError(err).Debug("[META] Skipping sender action for invalid recipient")
		return
	}
	payload := map[string]interface{}{
		"recipient":     map[string]string{"id": id},
		"sender_action": action,
	}
	if err := ma.client.PostJSON(ctx, ma.targetNode+"/messages", payload, nil); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"connection_id": ma.connectionID,
			"action":        action,
		}).Debug("[META] Sender action failed")
	}
}
