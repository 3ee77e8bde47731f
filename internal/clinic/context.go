package clinic

import (
	"github.com/google/uuid"
)

// DefaultAssistantName is used when a clinic never configured a persona.
const DefaultAssistantName = "Liz"

// WebhookContext is everything one gateway event needs to be answered: the
// internal instance identity, the gateway tokens, the clinic profile, and the
// calendar credentials. It is resolved in a single lookup per event.
type WebhookContext struct {
	InstanceID  uuid.UUID `json:"instance_id"`
	ZAPIToken   string    `json:"zapi_token"`
	ClientToken string    `json:"client_token,omitempty"`

	ClinicID        uuid.UUID `json:"clinic_id"`
	ClinicName      string    `json:"clinic_name"`
	Specialties     string    `json:"specialties"`
	ConsultationFee float64   `json:"consultation_fee"`
	Rules           string    `json:"rules"`
	AssistantName   string    `json:"assistant_name"`

	GoogleAccessToken  string `json:"google_access_token,omitempty"`
	GoogleRefreshToken string `json:"google_refresh_token,omitempty"`
	GoogleCalendarID   string `json:"google_calendar_id,omitempty"`
}

// HasCalendarTools reports whether scheduling tools can be offered to the
// model for this clinic. Both an access token and a selected calendar are
// required; a refresh token alone is not enough to issue calls.
func (c WebhookContext) HasCalendarTools() bool {
	return c.GoogleAccessToken != "" && c.GoogleCalendarID != ""
}

// Assistant returns the configured persona name, defaulting when unset.
func (c WebhookContext) Assistant() string {
	if c.AssistantName == "" {
		return DefaultAssistantName
	}
	return c.AssistantName
}
