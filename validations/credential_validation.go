package validations

import (
	"fmt"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/pkg/apperror"
)

// ValidateCredentials fails fast with a descriptive configuration error when a
// connection descriptor is missing the credentials its channel type needs.
// Runs before any adapter is constructed.
func ValidateCredentials(desc channel.ConnectionDescriptor) error {
	if desc.ID == 0 {
		return apperror.Configuration("connection id is required")
	}

	switch desc.Type {
	case channel.TypeWhatsApp:
		// The socket variant authenticates via its device store; nothing
		// mandatory beyond the id.
		return nil
	case channel.TypeWhatsAppCloud:
		return requireAll(desc, map[string]string{
			"token":           desc.Credentials.Token,
			"phone_number_id": desc.Credentials.PhoneNumberID,
			"business_id":     desc.Credentials.BusinessID,
		})
	case channel.TypeFacebook:
		return requireAll(desc, map[string]string{
			"token":   desc.Credentials.Token,
			"page_id": desc.Credentials.PageID,
		})
	case channel.TypeInstagram:
		return requireAll(desc, map[string]string{
			"token":        desc.Credentials.Token,
			"instagram_id": desc.Credentials.InstagramID,
		})
	case channel.TypeWebChat:
		return nil
	default:
		return apperror.Configuration(fmt.Sprintf("unknown channel type %q for connection %d", desc.Type, desc.ID))
	}
}

func requireAll(desc channel.ConnectionDescriptor, fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return apperror.Configuration(fmt.Sprintf(
				"connection %d (%s) is missing required credential %q", desc.ID, desc.Type, name))
		}
	}
	return nil
}
