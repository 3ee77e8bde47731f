package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushealth/clinic-concierge/internal/bookings"
	"github.com/nexushealth/clinic-concierge/internal/calendar"
	"github.com/nexushealth/clinic-concierge/internal/clinic"
	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/internal/messages"
	"github.com/nexushealth/clinic-concierge/internal/patients"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

type fakeResolver struct {
	wc  *clinic.WebhookContext
	err error
}

func (f *fakeResolver) ResolveWebhookContext(_ context.Context, _ string) (*clinic.WebhookContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wc, nil
}

type fakeMessageStore struct {
	history   []messages.Message
	duplicate bool
	inserted  []messages.Message
}

func (f *fakeMessageStore) Insert(_ context.Context, msg messages.Message) error {
	f.inserted = append(f.inserted, msg)
	return nil
}

func (f *fakeMessageStore) RecentHistory(_ context.Context, _ uuid.UUID, _ string, limit int) ([]messages.Message, error) {
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:], nil
	}
	return f.history, nil
}

func (f *fakeMessageStore) HasRecentDuplicate(_ context.Context, _ uuid.UUID, _, _ string, _ time.Duration) (bool, error) {
	return f.duplicate, nil
}

func (f *fakeMessageStore) byRole(role string) []messages.Message {
	var out []messages.Message
	for _, m := range f.inserted {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakePatientRepo struct {
	patient    *patients.Patient
	bookedID   uuid.UUID
	bookedName string
}

func (f *fakePatientRepo) GetOrCreateByPhone(_ context.Context, _ uuid.UUID, _ string) (*patients.Patient, error) {
	return f.patient, nil
}

func (f *fakePatientRepo) MarkBooked(_ context.Context, patientID uuid.UUID, name string) error {
	f.bookedID = patientID
	f.bookedName = name
	return nil
}

type fakeBookingRepo struct {
	created []bookings.Appointment
	err     error
}

func (f *fakeBookingRepo) CreateConfirmed(_ context.Context, clinicID, patientID uuid.UUID, scheduledAt time.Time) (*bookings.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	appt := bookings.Appointment{
		ID:          uuid.New(),
		ClinicID:    clinicID,
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Status:      bookings.StatusConfirmed,
	}
	f.created = append(f.created, appt)
	return &appt, nil
}

type fakeLLM struct {
	chatResponses []openai.ChatCompletionResponse
	chatRequests  []openai.ChatCompletionRequest
	chatErr       error

	transcript    string
	transcribeErr error
	description   string
	describeErr   error
	summary       string
	summarizeErr  error
	summarized    []string
	canTranscribe bool
}

func (f *fakeLLM) Chat(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatRequests = append(f.chatRequests, req)
	if f.chatErr != nil {
		return openai.ChatCompletionResponse{}, f.chatErr
	}
	if len(f.chatResponses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response")
	}
	resp := f.chatResponses[0]
	f.chatResponses = f.chatResponses[1:]
	return resp, nil
}

func (f *fakeLLM) HasTranscription() bool { return f.canTranscribe }

func (f *fakeLLM) Transcribe(_ context.Context, _ string) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeLLM) DescribeImage(_ context.Context, _, _ string) (string, error) {
	if f.describeErr != nil {
		return "", f.describeErr
	}
	return f.description, nil
}

func (f *fakeLLM) Summarize(_ context.Context, transcript string) (string, error) {
	f.summarized = append(f.summarized, transcript)
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return f.summary, nil
}

type fakeGateway struct {
	readMessageIDs []string
	reactions      []string
	reactionErr    error
}

func (f *fakeGateway) MarkRead(_ context.Context, _ gateway.InstanceCreds, _, messageID string) error {
	f.readMessageIDs = append(f.readMessageIDs, messageID)
	return nil
}

func (f *fakeGateway) SendReaction(_ context.Context, _ gateway.InstanceCreds, _, _, emoji string) error {
	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, emoji)
	return nil
}

type fakeCalendar struct {
	busy      []calendar.BusyInterval
	busyErr   error
	link      string
	insertErr error
	inserted  []calendar.EventInput
}

func (f *fakeCalendar) ListBusy(_ context.Context, _ calendar.Credentials, _ string, _, _ time.Time) ([]calendar.BusyInterval, error) {
	return f.busy, f.busyErr
}

func (f *fakeCalendar) InsertEvent(_ context.Context, _ calendar.Credentials, _ string, input calendar.EventInput) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, input)
	return f.link, nil
}

type fakeDispatcher struct {
	texts  []string
	phones []string
}

func (f *fakeDispatcher) DispatchText(_ context.Context, _ gateway.InstanceCreds, phone, text string) (int, error) {
	f.phones = append(f.phones, phone)
	f.texts = append(f.texts, text)
	return 1, nil
}

type pipelineFixture struct {
	service    *Service
	resolver   *fakeResolver
	store      *fakeMessageStore
	patients   *fakePatientRepo
	bookings   *fakeBookingRepo
	llm        *fakeLLM
	gateway    *fakeGateway
	calendar   *fakeCalendar
	dispatcher *fakeDispatcher
	clinicID   uuid.UUID
	instanceID uuid.UUID
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	clinicID := uuid.New()
	instanceID := uuid.New()
	f := &pipelineFixture{
		resolver: &fakeResolver{wc: &clinic.WebhookContext{
			InstanceID:         instanceID,
			ZAPIToken:          "tok",
			ClinicID:           clinicID,
			ClinicName:         "Clínica Vida",
			Specialties:        "Cardiologia",
			ConsultationFee:    250,
			Rules:              "Atendemos de segunda a sexta, 8h às 18h.",
			AssistantName:      "Liz",
			GoogleAccessToken:  "gat",
			GoogleRefreshToken: "grt",
			GoogleCalendarID:   "cal-1",
		}},
		store:      &fakeMessageStore{},
		patients:   &fakePatientRepo{patient: &patients.Patient{ID: uuid.New(), ClinicID: clinicID, PhoneNumber: "5511999999999", Status: patients.StatusLead}},
		bookings:   &fakeBookingRepo{},
		llm:        &fakeLLM{},
		gateway:    &fakeGateway{},
		calendar:   &fakeCalendar{link: "https://calendar.google.com/event?eid=abc"},
		dispatcher: &fakeDispatcher{},
		clinicID:   clinicID,
		instanceID: instanceID,
	}
	f.service = NewService(Deps{
		Contexts:    f.resolver,
		Messages:    f.store,
		Patients:    f.patients,
		Bookings:    f.bookings,
		LLM:         f.llm,
		Calendar:    f.calendar,
		Gateway:     f.gateway,
		Dispatcher:  f.dispatcher,
		Logger:      logging.Default(),
		Location:    loc,
		DedupWindow: 15 * time.Second,
	})
	f.service.now = func() time.Time { return time.Date(2026, 9, 1, 9, 30, 0, 0, loc) }
	return f
}

func textEvent(text string) gateway.Event {
	return gateway.Event{
		InstanceID: "zapi-1",
		Phone:      "5511999999999",
		MessageID:  "msg-1",
		Text:       &gateway.TextPayload{Message: text},
	}
}

func textCompletion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCompletion(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls}},
		},
	}
}

func TestHandleEventFirstContactReply(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.chatResponses = []openai.ChatCompletionResponse{
		textCompletion("Bom dia! Sou a Liz, da Clínica Vida. Como posso ajudar? 😊"),
	}

	outcome, err := f.service.HandleEvent(context.Background(), textEvent("Oi, queria saber o valor da consulta"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusReplied, outcome.Status)
	assert.Positive(t, outcome.ReplyLength)

	// Inbound turn persisted before the reply, reply persisted after.
	userTurns := f.store.byRole(messages.RoleUser)
	require.Len(t, userTurns, 1)
	assert.Equal(t, "Oi, queria saber o valor da consulta", userTurns[0].Content)
	assert.Equal(t, f.instanceID, userTurns[0].InstanceID)
	require.NotNil(t, userTurns[0].MediaType)
	assert.Equal(t, "text", *userTurns[0].MediaType)

	assistantTurns := f.store.byRole(messages.RoleAssistant)
	require.Len(t, assistantTurns, 1)
	assert.Contains(t, assistantTurns[0].Content, "Sou a Liz")

	require.Len(t, f.dispatcher.texts, 1)
	assert.Equal(t, "Bom dia! Sou a Liz, da Clínica Vida. Como posso ajudar? 😊", f.dispatcher.texts[0])
	assert.Equal(t, []string{"msg-1"}, f.gateway.readMessageIDs)

	// First contact: the persona prompt must introduce the assistant.
	require.NotEmpty(t, f.llm.chatRequests)
	system := f.llm.chatRequests[0].Messages[0]
	assert.Equal(t, openai.ChatMessageRoleSystem, system.Role)
	assert.Contains(t, system.Content, "PRIMEIRO CONTATO")
	assert.Contains(t, system.Content, "Clínica Vida")
	assert.Contains(t, system.Content, `"Bom dia"`)
}

func TestHandleEventReturningPatientPrompt(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.history = []messages.Message{
		{Role: messages.RoleUser, Content: "oi"},
		{Role: messages.RoleAssistant, Content: "Olá!"},
	}
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Claro, posso ajudar!")}

	_, err := f.service.HandleEvent(context.Background(), textEvent("quero remarcar"))
	require.NoError(t, err)

	system := f.llm.chatRequests[0].Messages[0]
	assert.Contains(t, system.Content, "JÁ CONVERSOU")
	assert.NotContains(t, system.Content, "PRIMEIRO CONTATO")

	// History precedes the new user turn.
	msgs := f.llm.chatRequests[0].Messages
	assert.Equal(t, "oi", msgs[1].Content)
	assert.Equal(t, "Olá!", msgs[2].Content)
	assert.Equal(t, "quero remarcar", msgs[len(msgs)-1].Content)
}

func TestHandleEventDuplicateTextShortCircuits(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.duplicate = true

	outcome, err := f.service.HandleEvent(context.Background(), textEvent("Oi"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusDuplicate, outcome.Status)

	assert.Empty(t, f.store.inserted, "a retry must leave no trace")
	assert.Empty(t, f.dispatcher.texts)
	assert.Empty(t, f.gateway.readMessageIDs)
	assert.Empty(t, f.llm.chatRequests)
}

func TestHandleEventUnsupportedKind(t *testing.T) {
	f := newPipelineFixture(t)

	outcome, err := f.service.HandleEvent(context.Background(), gateway.Event{
		InstanceID: "zapi-1",
		Phone:      "5511999999999",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusUnsupported, outcome.Status)
	assert.Empty(t, f.store.inserted)
}

func TestHandleEventUnknownInstance(t *testing.T) {
	f := newPipelineFixture(t)
	f.resolver.err = clinic.ErrInstanceNotFound

	_, err := f.service.HandleEvent(context.Background(), textEvent("Oi"))
	require.ErrorIs(t, err, clinic.ErrInstanceNotFound)
}

func TestHandleEventEmptyCompletionNotPersisted(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("   ")}

	outcome, err := f.service.HandleEvent(context.Background(), textEvent("Oi"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusReplied, outcome.Status)

	require.Len(t, f.dispatcher.texts, 1)
	assert.Equal(t, "...", f.dispatcher.texts[0])
	assert.Empty(t, f.store.byRole(messages.RoleAssistant), "the placeholder must not pollute history")
}

func TestHandleEventBookingToolLoop(t *testing.T) {
	f := newPipelineFixture(t)
	args := `{"patient_name":"João Pereira","start_time":"2026-09-03T14:00:00-03:00","end_time":"2026-09-03T15:00:00-03:00"}`
	f.llm.chatResponses = []openai.ChatCompletionResponse{
		toolCompletion(openai.ToolCall{
			ID:       "call-1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "book_appointment", Arguments: args},
		}),
		textCompletion("Prontinho, João! Sua consulta ficou para quinta às 14h. ✅"),
	}

	outcome, err := f.service.HandleEvent(context.Background(), textEvent("Pode confirmar quinta às 14h, sou o João Pereira"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusReplied, outcome.Status)

	// Calendar got the event with the expected naming convention.
	require.Len(t, f.calendar.inserted, 1)
	assert.Equal(t, "[Nexus] Consulta: João Pereira", f.calendar.inserted[0].Summary)
	assert.Contains(t, f.calendar.inserted[0].Description, "Telefone Paciente: 5511999999999")

	// Local records follow the calendar success.
	require.Len(t, f.bookings.created, 1)
	assert.Equal(t, f.clinicID, f.bookings.created[0].ClinicID)
	assert.Equal(t, f.patients.patient.ID, f.bookings.created[0].PatientID)
	assert.Equal(t, 14, f.bookings.created[0].ScheduledAt.Hour())
	assert.Equal(t, "João Pereira", f.patients.bookedName)

	// The persisted assistant turn carries the tool memory; the patient only
	// sees the closing text.
	assistantTurns := f.store.byRole(messages.RoleAssistant)
	require.Len(t, assistantTurns, 1)
	assert.True(t, strings.HasPrefix(assistantTurns[0].Content, "[MEMÓRIA DE SISTEMA: Usei ferramentas nesta rodada. book_appointment]"))
	assert.Contains(t, assistantTurns[0].Content, "eventLink")
	assert.Contains(t, assistantTurns[0].Content, "\n\nProntinho, João!")

	require.Len(t, f.dispatcher.texts, 1)
	assert.Equal(t, "Prontinho, João! Sua consulta ficou para quinta às 14h. ✅", f.dispatcher.texts[0])

	// First call offered tools; the closing call must not.
	require.Len(t, f.llm.chatRequests, 2)
	assert.NotEmpty(t, f.llm.chatRequests[0].Tools)
	assert.Empty(t, f.llm.chatRequests[1].Tools)

	// Closing call saw the tool result.
	last := f.llm.chatRequests[1].Messages
	var sawToolResult bool
	for _, m := range last {
		if m.Role == openai.ChatMessageRoleTool && m.ToolCallID == "call-1" {
			sawToolResult = true
			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(m.Content), &payload))
			assert.Equal(t, true, payload["success"])
		}
	}
	assert.True(t, sawToolResult)
}

func TestHandleEventBookingCalendarFailureLeavesNoRecords(t *testing.T) {
	f := newPipelineFixture(t)
	f.calendar.insertErr = errors.New("calendar: insufficient permissions")
	args := `{"patient_name":"Ana","start_time":"2026-09-03T14:00:00-03:00","end_time":"2026-09-03T15:00:00-03:00"}`
	f.llm.chatResponses = []openai.ChatCompletionResponse{
		toolCompletion(openai.ToolCall{
			ID:       "call-1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "book_appointment", Arguments: args},
		}),
		textCompletion("Tive um problema para confirmar agora, pode tentar de novo em instantes?"),
	}

	_, err := f.service.HandleEvent(context.Background(), textEvent("Confirma quinta 14h"))
	require.NoError(t, err)

	assert.Empty(t, f.bookings.created, "no appointment row without a calendar event")
	assert.Empty(t, f.patients.bookedName)

	require.Len(t, f.llm.chatRequests, 2)
	phase2 := f.llm.chatRequests[1].Messages
	toolTurn := phase2[len(phase2)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, toolTurn.Role)
	assert.Contains(t, toolTurn.Content, `"error"`)
	assert.Contains(t, toolTurn.Content, "insufficient permissions")

	assistantTurns := f.store.byRole(messages.RoleAssistant)
	require.Len(t, assistantTurns, 1)
	assert.Contains(t, assistantTurns[0].Content, "insufficient permissions")
}

func TestHandleEventReactionTool(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.chatResponses = []openai.ChatCompletionResponse{
		toolCompletion(openai.ToolCall{
			ID:       "call-1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "react_to_message", Arguments: `{"emoji":"❤️"}`},
		}),
		textCompletion("De nada! 🥰"),
	}

	_, err := f.service.HandleEvent(context.Background(), textEvent("obrigado!"))
	require.NoError(t, err)
	assert.Equal(t, []string{"❤️"}, f.gateway.reactions)
}

func TestHandleEventReactionWithoutMessageID(t *testing.T) {
	f := newPipelineFixture(t)
	event := textEvent("obrigado!")
	event.MessageID = ""
	f.llm.chatResponses = []openai.ChatCompletionResponse{
		toolCompletion(openai.ToolCall{
			ID:       "call-1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "react_to_message", Arguments: `{"emoji":"👍"}`},
		}),
		textCompletion("Disponha!"),
	}

	_, err := f.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, f.gateway.reactions)

	assistantTurns := f.store.byRole(messages.RoleAssistant)
	require.Len(t, assistantTurns, 1)
	assert.Contains(t, assistantTurns[0].Content, "Nenhum messageId disponível para reagir.")
}

func TestHandleEventSummarizesLongHistory(t *testing.T) {
	f := newPipelineFixture(t)
	for i := 0; i < 30; i++ {
		role := messages.RoleUser
		if i%2 == 1 {
			role = messages.RoleAssistant
		}
		f.store.history = append(f.store.history, messages.Message{Role: role, Content: fmt.Sprintf("turno %d", i)})
	}
	f.llm.summary = "Paciente João quer agendar cardiologia, aguardando escolha de horário."
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Seguimos então!")}

	_, err := f.service.HandleEvent(context.Background(), textEvent("bora"))
	require.NoError(t, err)

	require.Len(t, f.llm.summarized, 1)
	assert.Contains(t, f.llm.summarized[0], "Paciente: turno 0")
	assert.Contains(t, f.llm.summarized[0], "Assistente: turno 9")
	assert.NotContains(t, f.llm.summarized[0], "turno 10", "recent turns stay out of the summary")

	msgs := f.llm.chatRequests[0].Messages
	require.GreaterOrEqual(t, len(msgs), 23)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "=== RESUMO DAS MENSAGENS ANTERIORES ===")
	assert.Contains(t, msgs[1].Content, "Paciente João")
	assert.Equal(t, "turno 10", msgs[2].Content)
}

func TestHandleEventSummarizationFailureIsNonFatal(t *testing.T) {
	f := newPipelineFixture(t)
	for i := 0; i < 25; i++ {
		f.store.history = append(f.store.history, messages.Message{Role: messages.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	f.llm.summarizeErr = errors.New("model timeout")
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Tudo certo!")}

	outcome, err := f.service.HandleEvent(context.Background(), textEvent("oi"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusReplied, outcome.Status)

	for _, m := range f.llm.chatRequests[0].Messages {
		assert.NotContains(t, m.Content, "RESUMO DAS MENSAGENS ANTERIORES")
	}
}

func TestHandleEventAudioTranscribed(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.canTranscribe = true
	f.llm.transcript = "Quero marcar uma consulta para sexta"
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Claro! Sexta temos horários.")}

	event := gateway.Event{
		InstanceID: "zapi-1",
		Phone:      "5511999999999",
		MessageID:  "msg-2",
		Audio:      &gateway.AudioPayload{AudioURL: "https://media.example.com/v.ogg", Seconds: 6},
	}
	_, err := f.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)

	userTurns := f.store.byRole(messages.RoleUser)
	require.Len(t, userTurns, 1)
	assert.Equal(t, "Quero marcar uma consulta para sexta", userTurns[0].Content)
	require.NotNil(t, userTurns[0].MediaType)
	assert.Equal(t, "audio", *userTurns[0].MediaType)
	require.NotNil(t, userTurns[0].MediaURL)
	assert.Equal(t, "https://media.example.com/v.ogg", *userTurns[0].MediaURL)
}

func TestHandleEventAudioTranscriptionFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.canTranscribe = true
	f.llm.transcribeErr = errors.New("whisper unavailable")
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Não consegui ouvir seu áudio, pode escrever?")}

	event := gateway.Event{
		InstanceID: "zapi-1",
		Phone:      "5511999999999",
		Audio:      &gateway.AudioPayload{AudioURL: "https://media.example.com/v.ogg"},
	}
	outcome, err := f.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusReplied, outcome.Status)

	userTurns := f.store.byRole(messages.RoleUser)
	require.Len(t, userTurns, 1)
	assert.Equal(t, "[Paciente enviou um áudio que não pôde ser transcrito]", userTurns[0].Content)
}

func TestHandleEventCalendarToolsHiddenWithoutCredentials(t *testing.T) {
	f := newPipelineFixture(t)
	f.resolver.wc.GoogleAccessToken = ""
	f.llm.chatResponses = []openai.ChatCompletionResponse{textCompletion("Posso ajudar!")}

	_, err := f.service.HandleEvent(context.Background(), textEvent("quero agendar"))
	require.NoError(t, err)

	require.Len(t, f.llm.chatRequests, 1)
	require.Len(t, f.llm.chatRequests[0].Tools, 1, "only the reaction tool without calendar credentials")
	assert.Equal(t, "react_to_message", f.llm.chatRequests[0].Tools[0].Function.Name)
	assert.NotContains(t, f.llm.chatRequests[0].Messages[0].Content, "SUPER PODER: GERENCIAMENTO DE AGENDA")
}
