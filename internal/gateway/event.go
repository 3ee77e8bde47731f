package gateway

// Event is one inbound Z-API webhook call. Exactly one of the four payload
// shapes is expected; Detect resolves which one, once, and nothing downstream
// re-inspects the raw payload.
type Event struct {
	InstanceID string `json:"instanceId"`
	Phone      string `json:"phone"`
	FromMe     bool   `json:"fromMe"`
	IsGroup    bool   `json:"isGroup"`
	MessageID  string `json:"messageId"`

	Text     *TextPayload     `json:"text,omitempty"`
	Audio    *AudioPayload    `json:"audio,omitempty"`
	Image    *ImagePayload    `json:"image,omitempty"`
	Document *DocumentPayload `json:"document,omitempty"`
}

// TextPayload carries a plain text message.
type TextPayload struct {
	Message string `json:"message"`
}

// AudioPayload carries a voice note.
type AudioPayload struct {
	AudioURL string `json:"audioUrl"`
	Seconds  int    `json:"seconds"`
}

// ImagePayload carries a photo with an optional caption.
type ImagePayload struct {
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption"`
}

// DocumentPayload carries an attachment that is never fetched.
type DocumentPayload struct {
	DocumentURL string `json:"documentUrl"`
	FileName    string `json:"fileName"`
}

// MediaKind tags the resolved payload shape.
type MediaKind string

const (
	KindUnknown  MediaKind = ""
	KindText     MediaKind = "text"
	KindAudio    MediaKind = "audio"
	KindImage    MediaKind = "image"
	KindDocument MediaKind = "document"
)

// Detect resolves the tagged union. Shapes are checked in a fixed order so a
// malformed payload carrying more than one shape still maps deterministically.
func (e *Event) Detect() MediaKind {
	switch {
	case e.Text != nil && e.Text.Message != "":
		return KindText
	case e.Audio != nil && e.Audio.AudioURL != "":
		return KindAudio
	case e.Image != nil && e.Image.ImageURL != "":
		return KindImage
	case e.Document != nil && e.Document.DocumentURL != "":
		return KindDocument
	default:
		return KindUnknown
	}
}

// Webhook response statuses returned to the gateway.
const (
	StatusIgnored     = "ignored"
	StatusUnsupported = "unsupported_message_type"
	StatusDuplicate   = "ignored_duplicate"
	StatusReplied     = "replied"
)

// Outcome is the pipeline's disposition for one event.
type Outcome struct {
	Status      string
	ReplyLength int
}
