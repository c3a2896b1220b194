package whatsapp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/omnidesk/omnibridge/pkg/mediafetch"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// SendMessage is the single send entry point for the socket variant.
func (wa *Adapter) SendMessage(ctx context.Context, req message.SendRequest) (message.Normalized, error) {
	canonical, err := address.NormalizeWhatsApp(req.To)
	if err != nil {
		return message.Normalized{}, err
	}
	jid, err := types.ParseJID(canonical)
	if err != nil {
		return message.Normalized{}, apperror.InvalidRecipient(req.To, err)
	}

	if !wa.Supports(req.Kind) {
		return message.Normalized{}, apperror.UnsupportedContent(string(wa.Type()), string(req.Kind))
	}

	var msg *waE2E.Message
	body := req.Body
	switch req.Kind {
	case message.KindText:
		msg = wa.buildText(ctx, req, jid)
	case message.KindMedia:
		msg, err = wa.buildMedia(ctx, req)
		if err != nil {
			return message.Normalized{}, err
		}
		body = req.Media.Caption
	case message.KindButtons:
		msg = buildButtons(req)
	case message.KindList:
		msg = buildList(req)
	case message.KindContact:
		msg = buildContact(req.Contact)
		body = req.Contact.Name
	}

	resp, err := wa.sendWithRetry(ctx, jid, msg)
	if err != nil {
		if apperror.CodeOf(err) != "" {
			return message.Normalized{}, err
		}
		return message.Normalized{}, apperror.SendMessage(err)
	}

	normalized := wa.normalizeOutgoing(resp, canonical, body, req)
	wa.rememberMeta(normalized)
	return normalized, nil
}

func (wa *Adapter) normalizeOutgoing(resp whatsmeow.SendResponse, to, body string, req message.SendRequest) message.Normalized {
	normalized := message.Normalized{
		ID:        resp.ID,
		From:      wa.ownAddress(),
		To:        to,
		Body:      body,
		Timestamp: resp.Timestamp.UnixMilli(),
		FromMe:    true,
		Ack:       message.AckServer,
		IsGroup:   address.IsGroup(to),
	}
	if req.Kind == message.KindMedia && req.Media != nil {
		normalized.MediaType = req.Media.Type
		normalized.MediaURL = req.Media.URL
		normalized.Caption = req.Media.Caption
	}
	return normalized
}

// buildText builds an extended text message, resolving the quoted reply from
// stored delivery metadata when the request references a prior message.
func (wa *Adapter) buildText(ctx context.Context, req message.SendRequest, to types.JID) *waE2E.Message {
	ext := &waE2E.ExtendedTextMessage{Text: proto.String(req.Body)}
	if req.QuoteID != "" {
		ext.ContextInfo = wa.buildQuoteContext(ctx, req.QuoteID, to)
	}
	return &waE2E.Message{ExtendedTextMessage: ext}
}

// buildQuoteContext resolves the quoted message's remote address and author
// from the metadata store; a miss degrades to a minimal quote with only the
// id and destination rather than failing the send.
func (wa *Adapter) buildQuoteContext(ctx context.Context, quoteID string, to types.JID) *waE2E.ContextInfo {
	participant := to.String()
	if wa.metaStore != nil {
		if meta, ok := wa.metaStore.Get(ctx, wa.connectionID, quoteID); ok {
			if meta.FromMe {
				if own := wa.ownAddress(); own != "" {
					participant = own
				}
			} else if meta.Sender != "" {
				participant = meta.Sender
			}
		} else {
			logrus.WithField("quote_id", quoteID).Debug("[WHATSAPP] Quote metadata miss, using minimal quote")
		}
	}
	return &waE2E.ContextInfo{
		StanzaID:      proto.String(quoteID),
		Participant:   proto.String(participant),
		QuotedMessage: &waE2E.Message{Conversation: proto.String("")},
	}
}

func (wa *Adapter) buildMedia(ctx context.Context, req message.SendRequest) (*waE2E.Message, error) {
	media := *req.Media

	if len(media.Data) == 0 && media.URL != "" {
		data, contentType, err := mediafetch.Fetch(media.URL, wa.maxSizeFor(media.Type))
		if err != nil {
			return nil, apperror.MediaUpload(err)
		}
		media.Data = data
		if media.MimeType == "" {
			media.MimeType = contentType
		}
	}

	cli, err := wa.ensureReady(ctx)
	if err != nil {
		return nil, err
	}

	uploaded, err := cli.Upload(ctx, media.Data, uploadTypeFor(media.Type))
	if err != nil {
		return nil, apperror.MediaUpload(err)
	}
	logrus.WithFields(logrus.Fields{
		"connection_id": wa.connectionID,
		"size":          humanize.Bytes(uint64(len(media.Data))),
		"type":          media.Type,
	}).Debug("[WHATSAPP] Media uploaded")

	msg := &waE2E.Message{}
	switch media.Type {
	case message.MediaTypeImage:
		msg.ImageMessage = &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
			JPEGThumbnail: thumbnailJPEG(media.Data),
		}
	case message.MediaTypeVideo:
		msg.VideoMessage = &waE2E.VideoMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
		}
	case message.MediaTypeAudio, message.MediaTypePTT:
		msg.AudioMessage = &waE2E.AudioMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			PTT:           proto.Bool(media.Type == message.MediaTypePTT),
		}
	case message.MediaTypeSticker:
		msg.StickerMessage = &waE2E.StickerMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}
	default:
		msg.DocumentMessage = &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
			FileName:      proto.String(media.FileName),
		}
	}
	return msg, nil
}

func buildButtons(req message.SendRequest) *waE2E.Message {
	buttons := make([]*waE2E.ButtonsMessage_Button, 0, len(req.Buttons))
	for _, btn := range req.Buttons {
		buttons = append(buttons, &waE2E.ButtonsMessage_Button{
			ButtonID:   proto.String(btn.ID),
			ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{DisplayText: proto.String(btn.Label)},
			Type:       waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
		})
	}
	return &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{
				ButtonsMessage: &waE2E.ButtonsMessage{
					ContentText: proto.String(req.Body),
					HeaderType:  waE2E.ButtonsMessage_EMPTY.Enum(),
					Buttons:     buttons,
				},
			},
		},
	}
}

func buildList(req message.SendRequest) *waE2E.Message {
	sections := make([]*waE2E.ListMessage_Section, 0, len(req.Sections))
	for _, section := range req.Sections {
		rows := make([]*waE2E.ListMessage_Row, 0, len(section.Rows))
		for _, row := range section.Rows {
			rows = append(rows, &waE2E.ListMessage_Row{
				RowID:       proto.String(row.ID),
				Title:       proto.String(row.Title),
				Description: proto.String(row.Description),
			})
		}
		sections = append(sections, &waE2E.ListMessage_Section{
			Title: proto.String(section.Title),
			Rows:  rows,
		})
	}

	buttonText := req.ListText
	if buttonText == "" {
		buttonText = "Options"
	}
	return &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{
				ListMessage: &waE2E.ListMessage{
					Description: proto.String(req.Body),
					ButtonText:  proto.String(buttonText),
					ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
					Sections:    sections,
				},
			},
		},
	}
}

func buildContact(contact *message.Contact) *waE2E.Message {
	vcard := fmt.Sprintf(
		"BEGIN:VCARD\nVERSION:3.0\nN:;%s;;;\nFN:%s\nTEL;type=CELL;waid=%s:+%s\nEND:VCARD",
		contact.Name, contact.Name, contact.Phone, contact.Phone,
	)
	return &waE2E.Message{
		ContactMessage: &waE2E.ContactMessage{
			DisplayName: proto.String(contact.Name),
			Vcard:       proto.String(vcard),
		},
	}
}

// Buffer-based convenience wrappers.

func (wa *Adapter) SendDocumentMessage(ctx context.Context, to string, data []byte, fileName, mimeType, caption string) (message.Normalized, error) {
	return wa.SendMessage(ctx, message.WithMedia(to, message.Media{
		Type: message.MediaTypeDocument, Data: data, FileName: fileName, MimeType: mimeType, Caption: caption,
	}))
}

func (wa *Adapter) SendImageMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return wa.SendMessage(ctx, message.WithMedia(to, message.Media{
		Type: message.MediaTypeImage, Data: data, MimeType: mimeType, Caption: caption,
	}))
}

func (wa *Adapter) SendVideoMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error) {
	return wa.SendMessage(ctx, message.WithMedia(to, message.Media{
		Type: message.MediaTypeVideo, Data: data, MimeType: mimeType, Caption: caption,
	}))
}

func (wa *Adapter) SendAudioMessage(ctx context.Context, to string, data []byte, mimeType string, ptt bool) (message.Normalized, error) {
	mediaType := message.MediaTypeAudio
	if ptt {
		mediaType = message.MediaTypePTT
	}
	return wa.SendMessage(ctx, message.WithMedia(to, message.Media{
		Type: mediaType, Data: data, MimeType: mimeType,
	}))
}

func (wa *Adapter) maxSizeFor(mediaType message.MediaType) int64 {
	if wa.cfg == nil {
		return 0
	}
	switch mediaType {
	case message.MediaTypeImage, message.MediaTypeSticker:
		return wa.cfg.MaxImageSize
	case message.MediaTypeVideo:
		return wa.cfg.MaxVideoSize
	default:
		return wa.cfg.MaxFileSize
	}
}

func uploadTypeFor(mediaType message.MediaType) whatsmeow.MediaType {
	switch mediaType {
	case message.MediaTypeImage, message.MediaTypeSticker:
		return whatsmeow.MediaImage
	case message.MediaTypeVideo:
		return whatsmeow.MediaVideo
	case message.MediaTypeAudio, message.MediaTypePTT:
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// thumbnailJPEG renders a small JPEG preview for image sends. Returns nil on
// any decode failure; the thumbnail is cosmetic.
func thumbnailJPEG(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	thumb := imaging.Thumbnail(img, 72, 72, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil
	}
	return buf.Bytes()
}
