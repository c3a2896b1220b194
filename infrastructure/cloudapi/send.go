package cloudapi

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/omnidesk/omnibridge/pkg/mediafetch"
)

const maxMediaBytes = 100_000_000

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendMessage resolves the tagged union into a Cloud API messages payload.
// Media goes through the mandatory two-phase upload first.
func (ca *Adapter) SendMessage(ctx context.Context, req message.SendRequest) (message.Normalized, error) {
	canonical, err := address.NormalizeWhatsApp(req.To)
	if err != nil {
		return message.Normalized{}, err
	}
	if !ca.Supports(req.Kind) {
		return message.Normalized{}, apperror.UnsupportedContent("cloud api", string(req.Kind))
	}

	payload, err := ca.buildPayload(ctx, req, address.StripWhatsAppSuffix(canonical))
	if err != nil {
		return message.Normalized{}, err
	}

	var resp sendResponse
	if err := ca.client.PostJSON(ctx, ca.desc.Credentials.PhoneNumberID+"/messages", payload, &resp); err != nil {
		return message.Normalized{}, apperror.SendMessage(err)
	}
	if len(resp.Messages) == 0 {
		return message.Normalized{}, apperror.SendMessage(fmt.Errorf("cloud api returned no message id"))
	}

	normalized := message.Normalized{
		ID:        resp.Messages[0].ID,
		From:      ca.desc.Credentials.PhoneNumberID,
		To:        canonical,
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

func (ca *Adapter) buildPayload(ctx context.Context, req message.SendRequest, to string) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
	}
	if req.QuoteID != "" {
		payload["context"] = map[string]string{"message_id": req.QuoteID}
	}

	switch req.Kind {
	case message.KindText:
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{"body": req.Body, "preview_url": true}

	case message.KindMedia:
		if req.Media == nil {
			return nil, apperror.Validation("media payload is required")
		}
		mediaID, err := ca.uploadFor(ctx, *req.Media)
		if err != nil {
			return nil, err
		}
		kind, body := mediaObject(*req.Media, mediaID)
		payload["type"] = kind
		payload[kind] = body

	case message.KindButtons:
		payload["type"] = "interactive"
		payload["interactive"] = buttonsObject(req)

	case message.KindList:
		payload["type"] = "interactive"
		payload["interactive"] = listObject(req)

	case message.KindContact:
		if req.Contact == nil {
			return nil, apperror.Validation("contact payload is required")
		}
		payload["type"] = "contacts"
		payload["contacts"] = []map[string]interface{}{{
			"name":   map[string]string{"formatted_name": req.Contact.Name, "first_name": req.Contact.Name},
			"phones": []map[string]string{{"phone": req.Contact.Phone, "type": "CELL"}},
		}}

	case message.KindTemplate:
		if req.Template == nil {
			return nil, apperror.Validation("template payload is required")
		}
		tpl, err := ca.templateObject(ctx, *req.Template)
		if err != nil {
			return nil, err
		}
		payload["type"] = "template"
		payload["template"] = tpl
	}
	return payload, nil
}

// uploadFor runs the two-phase media protocol: fetch bytes when the request
// carries a URL, then upload them for an opaque media id.
func (ca *Adapter) uploadFor(ctx context.Context, media message.Media) (string, error) {
	data := media.Data
	mimeType := media.MimeType
	if len(data) == 0 {
		if media.URL == "" {
			return "", apperror.Validation("media requires a url or raw data")
		}
		fetched, contentType, err := mediafetch.Fetch(media.URL, maxMediaBytes)
		if err != nil {
			return "", apperror.MediaUpload(err)
		}
		data = fetched
		if mimeType == "" {
			mimeType = contentType
		}
	}
	if mimeType == "" {
		mimeType = mimeTypeFor(media)
	}

	id, err := ca.client.UploadMedia(ctx, ca.desc.Credentials.PhoneNumberID, data, mimeType)
	if err != nil {
		return "", apperror.MediaUpload(err)
	}
	return id, nil
}

func mediaObject(media message.Media, mediaID string) (string, map[string]interface{}) {
	body := map[string]interface{}{"id": mediaID}
	switch media.Type {
	case message.MediaTypeImage:
		if media.Caption != "" {
			body["caption"] = media.Caption
		}
		return "image", body
	case message.MediaTypeVideo:
		if media.Caption != "" {
			body["caption"] = media.Caption
		}
		return "video", body
	case message.MediaTypeAudio, message.MediaTypePTT:
		return "audio", body
	case message.MediaTypeSticker:
		return "sticker", body
	default:
		if media.Caption != "" {
			body["caption"] = media.Caption
		}
		if media.FileName != "" {
			body["filename"] = media.FileName
		}
		return "document", body
	}
}

func buttonsObject(req message.SendRequest) map[string]interface{} {
	buttons := make([]map[string]interface{}, 0, len(req.Buttons))
	for _, b := range req.Buttons {
		buttons = append(buttons, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Label},
		})
	}
	return map[string]interface{}{
		"type":   "button",
		"body":   map[string]string{"text": req.Body},
		"action": map[string]interface{}{"buttons": buttons},
	}
}

func listObject(req message.SendRequest) map[string]interface{} {
	sections := make([]map[string]interface{}, 0, len(req.Sections))
	for _, s := range req.Sections {
		rows := make([]map[string]string, 0, len(s.Rows))
		for _, r := range s.Rows {
			row := map[string]string{"id": r.ID, "title": r.Title}
			if r.Description != "" {
				row["description"] = r.Description
			}
			rows = append(rows, row)
		}
		sections = append(sections, map[string]interface{}{"title": s.Title, "rows": rows})
	}
	buttonText := req.ListText
	if buttonText == "" {
		buttonText = "Options"
	}
	return map[string]interface{}{
		"type":   "list",
		"body":   map[string]string{"text": req.Body},
		"action": map[string]interface{}{"button": buttonText, "sections": sections},
	}
}

// templateObject pre-scans header components for inline media links and
// uploads them so callers never have to pre-upload template media themselves.
func (ca *Adapter) templateObject(ctx context.Context, tpl message.Template) (map[string]interface{}, error) {
	out := map[string]interface{}{
		"name":     tpl.Name,
		"language": map[string]string{"code": tpl.Language},
	}

	components := make([]map[string]interface{}, 0, len(tpl.Components))
	var bodyParams []map[string]string
	for _, comp := range tpl.Components {
		switch strings.ToLower(comp.Type) {
		case "header":
			if comp.MediaURL == "" {
				continue
			}
			kind := comp.MediaKind
			if kind == "" {
				kind = "image"
			}
			mediaID, err := ca.uploadFor(ctx, message.Media{Type: message.MediaType(kind), URL: comp.MediaURL})
			if err != nil {
				return nil, err
			}
			components = append(components, map[string]interface{}{
				"type":       "header",
				"parameters": []map[string]interface{}{{"type": kind, kind: map[string]string{"id": mediaID}}},
			})
		case "body":
			bodyParams = append(bodyParams, map[string]string{"type": "text", "text": comp.Text})
		}
	}
	if len(bodyParams) > 0 {
		components = append(components, map[string]interface{}{"type": "body", "parameters": bodyParams})
	}
	if len(components) > 0 {
		out["components"] = components
	}
	return out, nil
}

func mimeTypeFor(media message.Media) string {
	if media.FileName != "" {
		if mt := mime.TypeByExtension(path.Ext(media.FileName)); mt != "" {
			return mt
		}
	}
	switch media.Type {
	case message.MediaTypeImage:
		return "image/jpeg"
	case message.MediaTypeVideo:
		return "video/mp4"
	case message.MediaTypeAudio, message.MediaTypePTT:
		return "audio/ogg"
	case message.MediaTypeSticker:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Buffer-based convenience wrappers. Upload failures surface as
// MEDIA_UPLOAD_ERROR distinctly from delivery failure.

func (ca *Adapter) SendDocumentMessage(ctx context.Context, to string, data []byte, fileName, mimeType, caption string) (message.Normalized, error) {
	return ca.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeDocument, Data: data, FileName: fileName, MimeType: mimeType, Caption: caption}))
}

func (ca *Adapter) SendImageMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return ca.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeImage, Data: data, MimeType: mimeType, Caption: caption}))
}

func (ca *Adapter) SendVideoMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return ca.SendMessage(ctx, message.WithMedia(to, message.Media{Type: message.MediaTypeVideo, Data: data, MimeType: mimeType, Caption: caption}))
}

func (ca *Adapter) SendAudioMessage(ctx context.Context, to string, data []byte, mimeType string, ptt bool) (message.Normalized, error) {
	kind := message.MediaTypeAudio
	if ptt {
		kind = message.MediaTypePTT
	}
	return ca.SendMessage(ctx, message.WithMedia(to, message.Media{Type: kind, Data: data, MimeType: mimeType}))
}

var _ channel.Adapter = (*Adapter)(nil)
