package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var tracer = otel.Tracer("nexus.internal.calendar")

// BusySummary is the neutral label shown to the model instead of real event
// titles. Patient-facing availability must not leak other patients' names.
const BusySummary = "Ocupado"

// Credentials are the per-clinic Google OAuth tokens stored alongside the
// instance record.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// BusyInterval is one occupied stretch on the clinic calendar.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary"`
}

// EventInput describes an appointment to create.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Service talks to Google Calendar on behalf of a clinic, exchanging the
// stored refresh token for access as needed.
type Service struct {
	oauth  *oauth2.Config
	opts   []option.ClientOption
	logger *logging.Logger
}

// NewService builds the calendar service. Extra client options are applied
// after the OAuth transport, so tests can point at a local server.
func NewService(clientID, clientSecret string, logger *logging.Logger, opts ...option.ClientOption) *Service {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		panic("calendar: google oauth client id and secret required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcalendar.CalendarEventsScope},
		},
		opts:   opts,
		logger: logger,
	}
}

// ListBusy returns the occupied intervals on the calendar between timeMin and
// timeMax, with event titles replaced by a neutral label.
func (s *Service) ListBusy(ctx context.Context, creds Credentials, calendarID string, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	ctx, span := tracer.Start(ctx, "calendar.list_busy")
	defer span.End()
	span.SetAttributes(attribute.String("nexus.calendar_id", calendarID))

	svc, err := s.client(ctx, creds)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	events, err := svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calendar: failed to list events: %w", err)
	}

	busy := make([]BusyInterval, 0, len(events.Items))
	for _, ev := range events.Items {
		if ev.Status == "cancelled" {
			continue
		}
		start, err := parseEventTime(ev.Start, timeMin.Location())
		if err != nil {
			s.logger.Warn("skipping event with unparseable start", "error", err, "event_id", ev.Id)
			continue
		}
		end, err := parseEventTime(ev.End, timeMin.Location())
		if err != nil {
			s.logger.Warn("skipping event with unparseable end", "error", err, "event_id", ev.Id)
			continue
		}
		busy = append(busy, BusyInterval{Start: start, End: end, Summary: BusySummary})
	}
	span.SetAttributes(attribute.Int("nexus.busy_intervals", len(busy)))
	return busy, nil
}

// InsertEvent creates the appointment and returns its browser link.
func (s *Service) InsertEvent(ctx context.Context, creds Credentials, calendarID string, input EventInput) (string, error) {
	ctx, span := tracer.Start(ctx, "calendar.insert_event")
	defer span.End()
	span.SetAttributes(attribute.String("nexus.calendar_id", calendarID))

	if input.End.IsZero() || !input.End.After(input.Start) {
		return "", errors.New("calendar: event end must be after start")
	}

	svc, err := s.client(ctx, creds)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	event := &gcalendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       &gcalendar.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:         &gcalendar.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
	}
	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("calendar: failed to insert event: %w", err)
	}
	return created.HtmlLink, nil
}

func (s *Service) client(ctx context.Context, creds Credentials) (*gcalendar.Service, error) {
	if strings.TrimSpace(creds.AccessToken) == "" && strings.TrimSpace(creds.RefreshToken) == "" {
		return nil, errors.New("calendar: credentials missing both access and refresh token")
	}
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	// A stored access token has an unknown age. Marking it expired forces the
	// transport to refresh whenever a refresh token is available.
	if creds.RefreshToken != "" {
		token.Expiry = time.Now().Add(-time.Minute)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(s.oauth.Client(ctx, token))}, s.opts...)
	svc, err := gcalendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to build client: %w", err)
	}
	return svc, nil
}

func parseEventTime(edt *gcalendar.EventDateTime, loc *time.Location) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("calendar: event time missing")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.ParseInLocation("2006-01-02", edt.Date, loc)
	}
	return time.Time{}, errors.New("calendar: event time empty")
}
