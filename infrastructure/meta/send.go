package meta

import (
	"context"
	"fmt"
	"path"

	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// SendMessage delivers text or media through the graph send endpoint.
// Instagram has no document attachment; documents there degrade to a text
// message carrying the file name and download link.
func (ma *Adapter) SendMessage(ctx context.Context, req message.SendRequest) (message.Normalized, error) {
	to, err := address.NormalizePlatformID(req.To)
	if err != nil {
		return message.Normalized{}, err
	}
	if !ma.Supports(req.Kind) {
		return message.Normalized{}, apperror.UnsupportedContent(string(ma.channelType), string(req.Kind))
	}

	if ma.degradesToLinkText(req) {
		// Without a URL the degraded text would carry only a file name the
		// recipient cannot open.
		if req.Media.URL == "" {
			return message.Normalized{}, apperror.UnsupportedContent(string(ma.channelType), string(message.MediaTypeDocument))
		}
		logrus.WithFields(logrus.Fields{
			"connection_id": ma.connectionID,
			"file_name":     req.Media.FileName,
		}).Debug("[META] Degrading document to link text")
		degraded := req
		degraded.Kind = message.KindText
		degraded.Body = documentLinkText(*req.Media)
		degraded.Media = nil
		return ma.SendMessage(ctx, degraded)
	}

	body, err := ma.messageObject(ctx, req)
	if err != nil {
		return message.Normalized{}, err
	}
	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": to},
		"messaging_type": "RESPONSE",
		"message":        body,
	}

	var resp sendResponse
	if err := ma.client.PostJSON(ctx, ma.targetNode+"/messages", payload, &resp); err != nil {
		return message.Normalized{}, apperror.SendMessage(err)
	}
	if resp.MessageID == "" {
		return message.Normalized{}, apperror.SendMessage(fmt.Errorf("graph api returned no message id"))
	}

	normalized := message.Normalized{
		ID:        resp.MessageID,
		From:      ma.targetNode,
		To:        to,
		Body:      req.Body,
		Timestamp: message.NowMillis(),
		FromMe:    true,
		Ack:       message.AckServer,
	}
	if req.Kind == message.KindMedia && req.Media != nil {
		normalized.MediaType = req.Media.Type
		normalized.MediaURL = req.Media.URL
		normalized.Caption = req.Media.Caption
	}
	return normalized, nil
}

func (ma *Adapter) degradesToLinkText(req message.SendRequest) bool {
	return ma.channelType == channel.TypeInstagram &&
		req.Kind == message.KindMedia &&
		req.Media != nil &&
		req.Media.Type == message.MediaTypeDocument
}

func documentLinkText(media message.Media) string {
	name := media.FileName
	if name == "" {
		name = path.Base(media.URL)
	}
	return fmt.Sprintf("%s\n%s", name, media.URL)
}

func (ma *Adapter) messageObject(ctx context.Context, req message.SendRequest) (map[string]interface{}, error) {
	if req.Kind == message.KindText {
		return map[string]interface{}{"text": req.Body}, nil
	}
	if req.Media == nil {
		return nil, apperror.Validation("media payload is required")
	}

	attachmentType, err := ma.attachmentTypeFor(req.Media.Type)
	if err != nil {
		return nil, err
	}

	if len(req.Media.Data) > 0 {
		attachmentID, err := ma.client.UploadAttachment(ctx, ma.targetNode, attachmentType, req.Media.Data, req.Media.MimeType)
		if err != nil {
			return nil, apperror.MediaUpload(err)
		}
		return map[string]interface{}{
			"attachment": map[string]interface{}{
				"type":    attachmentType,
				"payload": map[string]interface{}{"attachment_id": attachmentID},
			},
		}, nil
	}

	if req.Media.URL == "" {
		return nil, apperror.Validation("media requires a url or raw data")
	}
	return map[string]interface{}{
		"attachment": map[string]interface{}{
			"type":    attachmentType,
			"payload": map[string]interface{}{"url": req.Media.URL, "is_reusable": true},
		},
	}, nil
}

func (ma *Adapter) attachmentTypeFor(mediaType message.MediaType) (string, error) {
	switch mediaType {
	case message.MediaTypeImage, message.MediaTypeSticker:
		return "image", nil
	case message.MediaTypeVideo:
		return "video", nil
	case message.MediaTypeAudio, message.MediaTypePTT:
		if ma.channelType == channel.TypeInstagram {
			return "", apperror.UnsupportedContent(string(ma.channelType), string(mediaType))
		}
		return "audio", nil
	case message.MediaTypeDocument:
		if ma.channelType == channel.TypeInstagram {
			// unreachable from SendMessage, which degrades first
			return "", apperror.UnsupportedContent(string(ma.channelType), "document")
		}
		return "file", nil
	default:
		return "", apperror.UnsupportedContent(string(ma.channelType), string(mediaType))
	}
}

func (ma *Adapter) SendDocumentMessage(ctx context.Context, to string, data []byte, fileName, mimeType, caption string) (message.Normalized, error) {
	return ma.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeDocument, Data: data, FileName: fileName, MimeType: mimeType, Caption: caption}))
}

func (ma *Adapter) SendImageMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return ma.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeImage, Data: data, MimeType: mimeType, Caption: caption}))
}

func (ma *Adapter) SendVideoMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return ma.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeVideo, Data: data, MimeType: mimeType, Caption: caption}))
}

func (ma *Adapter) SendAudioMessage(ctx context.Context, to string, data []byte, mimeType string, ptt bool) (message.Normalized, error) {
	kind := message.MediaTypeAudio
	if ptt {
		kind = message.MediaTypePTT
	}
	return ma.SendMessage(ctx, message.WithMedia(to, message.Media{Type: kind, Data: data, MimeType: mimeType}))
}

var _ channel.Adapter = (*Adapter)(nil)
var _ channel.EventPusher = (*Adapter)(nil)
