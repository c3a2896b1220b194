package whatsapp

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
)

// DeleteMessage revokes a previously sent message for everyone.
func (wa *Adapter) DeleteMessage(ctx context.Context, to, messageID string, _ time.Time) error {
	canonical, err := address.NormalizeWhatsApp(to)
	if err != nil {
		return err
	}
	jid, err := types.ParseJID(canonical)
	if err != nil {
		return apperror.InvalidRecipient(to, err)
	}

	cli, err := wa.ensureReady(ctx)
	if err != nil {
		return err
	}

	if _, err := cli.SendMessage(ctx, jid, cli.BuildRevoke(jid, types.EmptyJID, messageID)); err != nil {
		if isClosedConnErr(err) {
			return apperror.ConnectionClosed(err)
		}
		return apperror.SendMessage(err)
	}
	return nil
}

// EditMessage is not available on the unofficial protocol.
func (wa *Adapter) EditMessage(ctx context.Context, to, messageID, newBody string, _ time.Time) (message.Normalized, error) {
	return message.Normalized{}, apperror.EditNotSupported(string(wa.Type()))
}

// GetProfilePicture is best-effort: nil on any failure.
func (wa *Adapter) GetProfilePicture(ctx context.Context, addr string) *string {
	jid, ok := wa.lookupJID(addr)
	if !ok {
		return nil
	}
	cli := wa.transport()
	if cli == nil {
		return nil
	}
	pic, err := cli.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{Preview: false})
	if err != nil || pic == nil {
		return nil
	}
	return &pic.URL
}

// GetStatus returns the remote party's "about" text, nil on any failure.
func (wa *Adapter) GetStatus(ctx context.Context, addr string) *string {
	jid, ok := wa.lookupJID(addr)
	if !ok {
		return nil
	}
	cli := wa.transport()
	if cli == nil {
		return nil
	}
	info, err := cli.GetUserInfo(ctx, []types.JID{jid})
	if err != nil {
		return nil
	}
	if user, ok := info[jid]; ok && user.Status != "" {
		return &user.Status
	}
	return nil
}

func (wa *Adapter) GetProfileInfo(ctx context.Context, addr string) *channel.ProfileInfo {
	info := &channel.ProfileInfo{}
	if status := wa.GetStatus(ctx, addr); status != nil {
		info.About = *status
	}
	if pic := wa.GetProfilePicture(ctx, addr); pic != nil {
		info.PictureURL = *pic
	}
	if info.About == "" && info.PictureURL == "" {
		return nil
	}
	return info
}

// MarkAsRead is advisory; failures are logged and swallowed.
func (wa *Adapter) MarkAsRead(ctx context.Context, addr string, messageIDs []string) {
	jid, ok := wa.lookupJID(addr)
	if !ok {
		return
	}
	cli := wa.transport()
	if cli == nil || !cli.IsConnected() {
		return
	}
	ids := make([]types.MessageID, len(messageIDs))
	copy(ids, messageIDs)
	if err := cli.MarkRead(ctx, ids, jid); err != nil {
		logrus.WithError(err).WithField("connection_id", wa.connectionID).Debug("[WHATSAPP] MarkRead failed")
	}
}

// SendPresenceUpdate is advisory; failures are logged and swallowed.
func (wa *Adapter) SendPresenceUpdate(ctx context.Context, addr string, typing bool) {
	jid, ok := wa.lookupJID(addr)
	if !ok {
		return
	}
	cli := wa.transport()
	if cli == nil || !cli.IsConnected() {
		return
	}

	state := types.ChatPresenceComposing
	if !typing {
		state = types.ChatPresencePaused
	}
	if err := cli.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText); err != nil {
		logrus.WithError(err).WithField("connection_id", wa.connectionID).Debug("[WHATSAPP] Presence update failed")
	}
}

func (wa *Adapter) lookupJID(addr string) (types.JID, bool) {
	canonical, err := address.NormalizeWhatsApp(addr)
	if err != nil {
		return types.EmptyJID, false
	}
	jid, err := types.ParseJID(canonical)
	if err != nil {
		return types.EmptyJID, false
	}
	return jid, true
}
