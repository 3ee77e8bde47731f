package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/internal/bookings"
	"github.com/nexushealth/clinic-concierge/internal/calendar"
	"github.com/nexushealth/clinic-concierge/internal/clinic"
	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/internal/patients"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var toolsTracer = otel.Tracer("nexus.internal.conversation.tools")

const (
	toolReact        = "react_to_message"
	toolAvailability = "check_availability"
	toolBook         = "book_appointment"
)

type calendarProvider interface {
	ListBusy(ctx context.Context, creds calendar.Credentials, calendarID string, timeMin, timeMax time.Time) ([]calendar.BusyInterval, error)
	InsertEvent(ctx context.Context, creds calendar.Credentials, calendarID string, input calendar.EventInput) (string, error)
}

type reactionSender interface {
	SendReaction(ctx context.Context, creds gateway.InstanceCreds, phone, messageID, emoji string) error
}

// availableTools returns the tool palette for one turn. Reactions are always
// offered; scheduling tools only when the clinic connected a calendar.
func availableTools(hasCalendar bool) []openai.Tool {
	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolReact,
				Description: `Reage à mensagem atual do usuário com um emoji. Útil para humanizar a conversa ou dar um simples "visto/ok" sem texto.`,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"emoji": map[string]any{
							"type":        "string",
							"description": "O emoji para reagir (um único caractere, ex: 👍, ❤️, 😂)",
						},
					},
					"required": []string{"emoji"},
				},
			},
		},
	}
	if !hasCalendar {
		return tools
	}
	return append(tools,
		openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolAvailability,
				Description: "Verifica horários ocupados na agenda do Google Calendar da clínica para a data especificada.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{"type": "string", "description": "A data alvo (YYYY-MM-DD)"},
					},
					"required": []string{"date"},
				},
			},
		},
		openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolBook,
				Description: "Marca uma consulta médica preenchendo o slot no Google Calendar e nossa base.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"patient_name": map[string]any{"type": "string", "description": "Nome completo do paciente"},
						"start_time": map[string]any{
							"type":        "string",
							"description": "Hora de início exata no formato ISO 8601 COM timezone (ex: 2024-05-20T14:00:00-03:00)",
						},
						"end_time": map[string]any{
							"type":        "string",
							"description": "Hora de término exata no formato ISO 8601 COM timezone (normalmente 1 hora de duração, ex: 2024-05-20T15:00:00-03:00)",
						},
					},
					"required": []string{"patient_name", "start_time", "end_time"},
				},
			},
		},
	)
}

// toolTurn carries the per-event state a tool execution may touch.
type toolTurn struct {
	Context   clinic.WebhookContext
	Creds     gateway.InstanceCreds
	Phone     string
	MessageID string
	Patient   *patients.Patient
}

// toolExecutor runs tool calls against the real collaborators. Every outcome,
// success or failure, comes back as a JSON payload for the model; executor
// errors never abort the turn.
type toolExecutor struct {
	cal      calendarProvider
	bookings bookings.Repository
	patients patients.Repository
	reactor  reactionSender
	loc      *time.Location
	logger   *logging.Logger
}

func (e *toolExecutor) Execute(ctx context.Context, call openai.ToolCall, turn toolTurn) string {
	ctx, span := toolsTracer.Start(ctx, "conversation.tool")
	defer span.End()
	span.SetAttributes(attribute.String("nexus.tool", call.Function.Name))

	var result string
	switch call.Function.Name {
	case toolAvailability:
		result = e.checkAvailability(ctx, call.Function.Arguments, turn)
	case toolBook:
		result = e.bookAppointment(ctx, call.Function.Arguments, turn)
	case toolReact:
		result = e.react(ctx, call.Function.Arguments, turn)
	default:
		result = toolError(fmt.Sprintf("ferramenta desconhecida: %s", call.Function.Name))
	}
	return result
}

func (e *toolExecutor) checkAvailability(ctx context.Context, rawArgs string, turn toolTurn) string {
	var args struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return toolError(fmt.Sprintf("argumentos inválidos: %v", err))
	}
	day, err := time.ParseInLocation("2006-01-02", args.Date, e.loc)
	if err != nil {
		return toolError(fmt.Sprintf("data inválida: %v", err))
	}
	if e.cal == nil {
		return toolError("agenda não configurada")
	}

	timeMin := day
	timeMax := day.Add(24*time.Hour - time.Second)
	busy, err := e.cal.ListBusy(ctx, e.credentials(turn.Context), turn.Context.GoogleCalendarID, timeMin, timeMax)
	if err != nil {
		e.logger.Error("availability check failed", "error", err, "date", args.Date)
		return toolError(err.Error())
	}
	if busy == nil {
		busy = []calendar.BusyInterval{}
	}
	payload, _ := json.Marshal(map[string]any{"occupied_slots": busy})
	return string(payload)
}

func (e *toolExecutor) bookAppointment(ctx context.Context, rawArgs string, turn toolTurn) string {
	var args struct {
		PatientName string `json:"patient_name"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return toolError(fmt.Sprintf("argumentos inválidos: %v", err))
	}
	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return toolError(fmt.Sprintf("start_time inválido: %v", err))
	}
	end, err := time.Parse(time.RFC3339, args.EndTime)
	if err != nil {
		return toolError(fmt.Sprintf("end_time inválido: %v", err))
	}
	if e.cal == nil {
		return toolError("agenda não configurada")
	}

	link, err := e.cal.InsertEvent(ctx, e.credentials(turn.Context), turn.Context.GoogleCalendarID, calendar.EventInput{
		Summary:     fmt.Sprintf("[Nexus] Consulta: %s", args.PatientName),
		Description: fmt.Sprintf("Agendado via IA.\nTelefone Paciente: %s", turn.Phone),
		Start:       start,
		End:         end,
	})
	if err != nil {
		e.logger.Error("booking failed at calendar", "error", err, "patient_name", args.PatientName)
		return toolError(err.Error())
	}

	// The calendar event is the booking's source of truth. Store failures
	// after this point are logged but the slot stays booked.
	if turn.Patient != nil {
		if _, err := e.bookings.CreateConfirmed(ctx, turn.Context.ClinicID, turn.Patient.ID, start); err != nil {
			e.logger.Error("failed to record appointment", "error", err, "patient_id", turn.Patient.ID)
		}
		if err := e.patients.MarkBooked(ctx, turn.Patient.ID, args.PatientName); err != nil {
			e.logger.Error("failed to mark patient booked", "error", err, "patient_id", turn.Patient.ID)
		}
	} else {
		e.logger.Warn("appointment booked without a registered patient", "phone", turn.Phone)
	}

	payload, _ := json.Marshal(map[string]any{"success": true, "eventLink": link})
	return string(payload)
}

func (e *toolExecutor) react(ctx context.Context, rawArgs string, turn toolTurn) string {
	var args struct {
		Emoji string `json:"emoji"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return toolError(fmt.Sprintf("argumentos inválidos: %v", err))
	}
	if turn.MessageID == "" {
		return toolError("Nenhum messageId disponível para reagir.")
	}
	if err := e.reactor.SendReaction(ctx, turn.Creds, turn.Phone, turn.MessageID, args.Emoji); err != nil {
		e.logger.Error("failed to send reaction", "error", err, "message_id", turn.MessageID)
		return toolError(fmt.Sprintf("Falha ao reagir: %v", err))
	}
	payload, _ := json.Marshal(map[string]string{
		"success": fmt.Sprintf("Reagiu com sucesso com o emoji %s", args.Emoji),
	})
	return string(payload)
}

func (e *toolExecutor) credentials(wc clinic.WebhookContext) calendar.Credentials {
	return calendar.Credentials{
		AccessToken:  wc.GoogleAccessToken,
		RefreshToken: wc.GoogleRefreshToken,
	}
}

func toolError(msg string) string {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return string(payload)
}
