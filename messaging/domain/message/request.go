package message

// Kind tags the content variant carried by a SendRequest.
type Kind string

const (
	KindText     Kind = "text"
	KindMedia    Kind = "media"
	KindButtons  Kind = "buttons"
	KindList     Kind = "list"
	KindContact  Kind = "contact"
	KindTemplate Kind = "template"
)

// Button is one interactive reply button. Channels cap the count at three and
// the label at twenty characters.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ListRow is one selectable row inside a list section.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// Media carries media content either as raw bytes or by URL; exactly one of
// Data/URL is set. FileName is required for documents.
type Media struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url,omitempty"`
	Data     []byte    `json:"-"`
	MimeType string    `json:"mime_type,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	Caption  string    `json:"caption,omitempty"`
}

// Contact is a vCard payload.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TemplateComponent is one positional component of a pre-approved template.
// Header components may reference inline media by URL; the cloud adapter
// uploads those transparently before submission.
type TemplateComponent struct {
	Type      string `json:"type"` // header | body | button
	Text      string `json:"text,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaKind string `json:"media_kind,omitempty"` // image | video | document
}

// Template references a pre-approved message template.
type Template struct {
	Name       string              `json:"name"`
	Language   string              `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

// SendRequest is the tagged union every adapter accepts. Kind selects which of
// the optional payloads is meaningful; adapters reject kinds they do not
// support with UNSUPPORTED_CONTENT.
type SendRequest struct {
	To       string        `json:"to"`
	Kind     Kind          `json:"kind"`
	Body     string        `json:"body,omitempty"`
	Media    *Media        `json:"media,omitempty"`
	Buttons  []Button      `json:"buttons,omitempty"`
	Sections []ListSection `json:"sections,omitempty"`
	ListText string        `json:"list_text,omitempty"` // button label opening the list
	Contact  *Contact      `json:"contact,omitempty"`
	Template *Template     `json:"template,omitempty"`
	QuoteID  string        `json:"quote_id,omitempty"` // prior message id to reply to
}

// Text builds a plain text request.
func Text(to, body string) SendRequest {
	return SendRequest{To: to, Kind: KindText, Body: body}
}

// WithMedia builds a media request.
func WithMedia(to string, media Media) SendRequest {
	return SendRequest{To: to, Kind: KindMedia, Media: &media}
}
