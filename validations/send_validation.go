package validations

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
)

// Interactive-content limits shared by the WhatsApp variants.
const (
	MaxButtons           = 3
	MaxButtonLabelLen    = 20
	MaxListSections      = 10
	MaxListRowsPerSect   = 10
	MaxListRowTitleLen   = 24
	MaxListRowDescLen    = 72
	MaxTemplateNameLen   = 512
	MaxContactNameLen    = 256
	MaxContactPhoneDigit = 20
)

// ValidateSendRequest checks the structural limits of a SendRequest before it
// reaches any adapter. Channel capability checks stay in the adapters.
func ValidateSendRequest(ctx context.Context, req message.SendRequest) error {
	err := validation.ValidateStructWithContext(ctx, &req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Kind, validation.Required, validation.In(
			message.KindText, message.KindMedia, message.KindButtons,
			message.KindList, message.KindContact, message.KindTemplate,
		)),
	)
	if err != nil {
		return apperror.Validation(err.Error())
	}

	switch req.Kind {
	case message.KindText:
		if req.Body == "" {
			return apperror.Validation("text message body cannot be empty")
		}
	case message.KindMedia:
		return validateMedia(req.Media)
	case message.KindButtons:
		return validateButtons(req)
	case message.KindList:
		return validateList(req)
	case message.KindContact:
		return validateContact(req.Contact)
	case message.KindTemplate:
		return validateTemplate(req.Template)
	}
	return nil
}

func validateMedia(media *message.Media) error {
	if media == nil {
		return apperror.Validation("media payload is required for media messages")
	}
	if media.URL == "" && len(media.Data) == 0 {
		return apperror.Validation("media requires either a url or raw data")
	}
	if media.URL != "" && len(media.Data) > 0 {
		return apperror.Validation("media accepts url or raw data, not both")
	}
	if media.Type == message.MediaTypeDocument && media.FileName == "" {
		return apperror.Validation("document media requires a file name")
	}
	switch media.Type {
	case message.MediaTypeImage, message.MediaTypeVideo, message.MediaTypeAudio,
		message.MediaTypePTT, message.MediaTypeDocument, message.MediaTypeSticker:
		return nil
	default:
		return apperror.Validation(fmt.Sprintf("unknown media type %q", media.Type))
	}
}

func validateButtons(req message.SendRequest) error {
	if len(req.Buttons) == 0 {
		return apperror.Validation("buttons message requires at least one button")
	}
	if len(req.Buttons) > MaxButtons {
		return apperror.Validation(fmt.Sprintf("at most %d buttons are allowed", MaxButtons))
	}
	for i, btn := range req.Buttons {
		if btn.Label == "" {
			return apperror.Validation(fmt.Sprintf("button %d has an empty label", i))
		}
		if len([]rune(btn.Label)) > MaxButtonLabelLen {
			return apperror.Validation(fmt.Sprintf("button label %q exceeds %d characters", btn.Label, MaxButtonLabelLen))
		}
	}
	return nil
}

func validateList(req message.SendRequest) error {
	if len(req.Sections) == 0 {
		return apperror.Validation("list message requires at least one section")
	}
	if len(req.Sections) > MaxListSections {
		return apperror.Validation(fmt.Sprintf("at most %d list sections are allowed", MaxListSections))
	}
	for si, section := range req.Sections {
		if len(section.Rows) == 0 {
			return apperror.Validation(fmt.Sprintf("list section %d has no rows", si))
		}
		if len(section.Rows) > MaxListRowsPerSect {
			return apperror.Validation(fmt.Sprintf("list section %d exceeds %d rows", si, MaxListRowsPerSect))
		}
		for ri, row := range section.Rows {
			if row.Title == "" {
				return apperror.Validation(fmt.Sprintf("list row %d/%d has an empty title", si, ri))
			}
			if len([]rune(row.Title)) > MaxListRowTitleLen {
				return apperror.Validation(fmt.Sprintf("list row title %q exceeds %d characters", row.Title, MaxListRowTitleLen))
			}
			if len([]rune(row.Description)) > MaxListRowDescLen {
				return apperror.Validation(fmt.Sprintf("list row description exceeds %d characters", MaxListRowDescLen))
			}
		}
	}
	return nil
}

func validateContact(contact *message.Contact) error {
	if contact == nil {
		return apperror.Validation("contact payload is required for contact messages")
	}
	err := validation.ValidateStruct(contact,
		validation.Field(&contact.Name, validation.Required, validation.Length(1, MaxContactNameLen)),
		validation.Field(&contact.Phone, validation.Required),
	)
	if err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func validateTemplate(tmpl *message.Template) error {
	if tmpl == nil {
		return apperror.Validation("template payload is required for template messages")
	}
	err := validation.ValidateStruct(tmpl,
		validation.Field(&tmpl.Name, validation.Required, validation.Length(1, MaxTemplateNameLen)),
		validation.Field(&tmpl.Language, validation.Required),
	)
	if err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}
