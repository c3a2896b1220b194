package cloudapi

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

var nowFunc = time.Now

// EditMessage rejects edits past the channel's edit window before any network
// I/O; the age check is local.
func (ca *Adapter) EditMessage(ctx context.Context, to, messageID, newBody string, sentAt time.Time) (message.Normalized, error) {
	canonical, err := address.NormalizeWhatsApp(to)
	if err != nil {
		return message.Normalized{}, err
	}
	if nowFunc().Sub(sentAt) > ca.cfg.EditWindow {
		return message.Normalized{}, apperror.MessageTooOld("message is older than the edit window")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                address.StripWhatsAppSuffix(canonical),
		"type":              "text",
		"text":              map[string]interface{}{"body": newBody},
		"context":           map[string]string{"message_id": messageID},
		"edit":              "message",
	}
	var resp sendResponse
	if err := ca.client.PostJSON(ctx, ca.desc.Credentials.PhoneNumberID+"/messages", payload, &resp); err != nil {
		return message.Normalized{}, apperror.SendMessage(err)
	}

	id := messageID
	if len(resp.Messages) > 0 {
		id = resp.Messages[0].ID
	}
	return message.Normalized{
		ID:        id,
		From:      ca.desc.Credentials.PhoneNumberID,
		To:        canonical,
		Body:      newBody,
		Timestamp: message.NowMillis(),
		FromMe:    true,
		Ack:       message.AckServer,
	}, nil
}

// DeleteMessage rejects deletes past the channel's delete window locally.
func (ca *Adapter) DeleteMessage(ctx context.Context, to, messageID string, sentAt time.Time) error {
	if _, err := address.NormalizeWhatsApp(to); err != nil {
		return err
	}
	if nowFunc().Sub(sentAt) > ca.cfg.DeleteWindow {
		return apperror.MessageTooOld("message is older than the delete window")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "deleted",
		"message_id":        messageID,
	}
	if err := ca.client.PostJSON(ctx, ca.desc.Credentials.PhoneNumberID+"/messages", payload, nil); err != nil {
		return apperror.SendMessage(err)
	}
	return nil
}

// The Cloud API has no user profile surface; lookups degrade to nil.

func (ca *Adapter) GetProfilePicture(_ context.Context, _ string) *string { return nil }

func (ca *Adapter) GetStatus(_ context.Context, _ string) *string { return nil }

func (ca *Adapter) GetProfileInfo(_ context.Context, _ string) *channel.ProfileInfo { return nil }

// MarkAsRead is advisory; failures are logged, never surfaced.
func (ca *Adapter) MarkAsRead(ctx context.Context, _ string, messageIDs []string) {
	for _, id := range messageIDs {
		payload := map[string]interface{}{
			"messaging_product": "whatsapp",
			"status":            "read",
			"message_id":        id,
		}
		if err := ca.client.PostJSON(ctx, ca.desc.Credentials.PhoneNumberID+"/messages", payload, nil); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"connection_id": ca.connectionID,
				"message_id":    id,
			}).Debug("[CLOUDAPI] Failed to mark message as read")
		}
	}
}

// SendPresenceUpdate is advisory; the channel has no paused state, so only a
// typing start is forwarded.
func (ca *Adapter) SendPresenceUpdate(ctx context.Context, addr string, typing bool) {
	if !typing {
		return
	}
	canonical, err := address.NormalizeWhatsApp(addr)
	if err != nil {
		logrus.WithError(err).Debug("[CLOUDAPI] Skipping presence update for invalid recipient")
		return
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                address.StripWhatsAppSuffix(canonical),
		"typing_indicator":  map[string]string{"type": "text"},
	}
	if err := ca.client.PostJSON(ctx, ca.desc.Credentials.PhoneNumberID+"/messages", payload, nil); err != nil {
		logrus.WithError(err).WithField("connection_id", ca.connectionID).
			Debug("[CLOUDAPI] Failed to send typing indicator")
	}
}
