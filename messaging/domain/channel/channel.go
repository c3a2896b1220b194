package channel

// ChannelType identifies one messaging backend.
type ChannelType string

const (
	// TypeWhatsApp is the unofficial multi-device socket protocol.
	TypeWhatsApp ChannelType = "whatsapp"
	// TypeWhatsAppCloud is the official WhatsApp Business Cloud API.
	TypeWhatsAppCloud ChannelType = "whatsapp_cloud"
	TypeFacebook      ChannelType = "facebook"
	TypeInstagram     ChannelType = "instagram"
	TypeWebChat       ChannelType = "webchat"
)

// ConnectionStatus is the adapter's view of its transport.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Credentials holds per-channel secrets and identifiers. Which fields are
// required depends on the channel type; the registry validates before any
// adapter is constructed.
type Credentials struct {
	Token           string `json:"token,omitempty"`             // cloudapi / facebook / instagram access token
	PhoneNumberID   string `json:"phone_number_id,omitempty"`   // cloudapi
	BusinessID      string `json:"business_id,omitempty"`       // cloudapi WABA id
	TwoFactorPIN    string `json:"two_factor_pin,omitempty"`    // cloudapi optional
	PageID          string `json:"page_id,omitempty"`           // facebook
	InstagramID     string `json:"instagram_id,omitempty"`      // instagram
	GreetingMessage string `json:"greeting_message,omitempty"`  // webchat
	SessionStoreDir string `json:"session_store_dir,omitempty"` // whatsapp socket device db dir
}

// ConnectionDescriptor is what the configuration layer hands the registry: the
// numeric connection id, the channel variant and its credentials.
type ConnectionDescriptor struct {
	ID          uint        `json:"id"`
	Type        ChannelType `json:"type"`
	Name        string      `json:"name"`
	Credentials Credentials `json:"credentials"`
}

// ProfileInfo is the best-effort remote-party profile shape.
type ProfileInfo struct {
	Name       string `json:"name,omitempty"`
	About      string `json:"about,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

// ProvisioningInfo is what the cloud-api adapter writes back to the persisted
// connection record after a successful initialize.
type ProvisioningInfo struct {
	PhoneNumberID string
	BusinessID    string
	PhoneNumber   string
	Status        ConnectionStatus
}

// ConnectionStore persists connection records. The adapter layer only ever
// performs one side-effecting write through it (cloud-api provisioning) and
// must tolerate that write failing.
type ConnectionStore interface {
	UpdateProvisioning(id uint, info ProvisioningInfo) error
}
