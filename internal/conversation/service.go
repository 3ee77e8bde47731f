package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/internal/bookings"
	"github.com/nexushealth/clinic-concierge/internal/clinic"
	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/internal/messages"
	"github.com/nexushealth/clinic-concierge/internal/observability/metrics"
	"github.com/nexushealth/clinic-concierge/internal/patients"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var tracer = otel.Tracer("nexus.internal.conversation")

// fallbackReply goes out when the model returns empty content. It is never
// persisted as history.
const fallbackReply = "..."

type completionClient interface {
	mediaClient
	summarizer
	Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type gatewayActions interface {
	reactionSender
	MarkRead(ctx context.Context, creds gateway.InstanceCreds, phone, messageID string) error
}

type replyDispatcher interface {
	DispatchText(ctx context.Context, creds gateway.InstanceCreds, phone, text string) (int, error)
}

// Deps wires the pipeline's collaborators.
type Deps struct {
	Contexts   clinic.Resolver
	Messages   messages.Store
	Patients   patients.Repository
	Bookings   bookings.Repository
	LLM        completionClient
	Calendar   calendarProvider
	Gateway    gatewayActions
	Dispatcher replyDispatcher
	Metrics    *metrics.WebhookMetrics
	Logger     *logging.Logger

	Location     *time.Location
	ReadingPause time.Duration
	DedupWindow  time.Duration
}

// Service runs one conversational turn per inbound gateway event: resolve the
// clinic, drop retries, flatten media to text, recall history, ask the model
// (letting it drive calendar tools), persist both sides and hand the reply to
// the dispatcher.
type Service struct {
	contexts   clinic.Resolver
	messages   messages.Store
	patients   patients.Repository
	llm        completionClient
	gateway    gatewayActions
	dispatcher replyDispatcher
	metrics    *metrics.WebhookMetrics
	media      *mediaNormalizer
	tools      *toolExecutor
	logger     *logging.Logger

	loc          *time.Location
	readingPause time.Duration
	dedupWindow  time.Duration
	now          func() time.Time
}

// NewService builds the pipeline.
func NewService(deps Deps) *Service {
	if deps.Contexts == nil {
		panic("conversation: context resolver cannot be nil")
	}
	if deps.Messages == nil {
		panic("conversation: message store cannot be nil")
	}
	if deps.Patients == nil {
		panic("conversation: patient repository cannot be nil")
	}
	if deps.LLM == nil {
		panic("conversation: llm client cannot be nil")
	}
	if deps.Gateway == nil {
		panic("conversation: gateway client cannot be nil")
	}
	if deps.Dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.DedupWindow <= 0 {
		deps.DedupWindow = 15 * time.Second
	}

	return &Service{
		contexts:   deps.Contexts,
		messages:   deps.Messages,
		patients:   deps.Patients,
		llm:        deps.LLM,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		media:      newMediaNormalizer(deps.LLM, deps.Logger),
		tools: &toolExecutor{
			cal:      deps.Calendar,
			bookings: deps.Bookings,
			patients: deps.Patients,
			reactor:  deps.Gateway,
			loc:      deps.Location,
			logger:   deps.Logger,
		},
		logger:       deps.Logger,
		loc:          deps.Location,
		readingPause: deps.ReadingPause,
		dedupWindow:  deps.DedupWindow,
		now:          time.Now,
	}
}

// HandleEvent processes one inbound event end to end.
func (s *Service) HandleEvent(ctx context.Context, event gateway.Event) (gateway.Outcome, error) {
	ctx, span := tracer.Start(ctx, "conversation.handle_event")
	defer span.End()

	kind := event.Detect()
	span.SetAttributes(
		attribute.String("nexus.kind", string(kind)),
		attribute.String("nexus.zapi_instance_id", event.InstanceID),
	)
	if kind == gateway.KindUnknown {
		return gateway.Outcome{Status: gateway.StatusUnsupported}, nil
	}

	wc, err := s.contexts.ResolveWebhookContext(ctx, event.InstanceID)
	if err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}
	creds := gateway.InstanceCreds{
		InstanceID:  event.InstanceID,
		Token:       wc.ZAPIToken,
		ClientToken: wc.ClientToken,
	}

	// Retries only happen for text: the gateway regenerates media URLs per
	// delivery, so content-based matching works for text alone.
	if kind == gateway.KindText {
		dup, err := s.messages.HasRecentDuplicate(ctx, wc.InstanceID, event.Phone, event.Text.Message, s.dedupWindow)
		if err != nil {
			span.RecordError(err)
			return gateway.Outcome{}, err
		}
		if dup {
			s.logger.Info("dropping gateway retry", "zapi_instance_id", event.InstanceID, "message_id", event.MessageID)
			return gateway.Outcome{Status: gateway.StatusDuplicate}, nil
		}
	}

	patient, err := s.patients.GetOrCreateByPhone(ctx, wc.ClinicID, event.Phone)
	if err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}

	s.pauseAndMarkRead(ctx, creds, event)

	input := s.media.Normalize(ctx, event)

	history, err := s.messages.RecentHistory(ctx, wc.InstanceID, event.Phone, historyWindow)
	if err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}
	isReturning := len(history) > 0
	recent, summary := condenseHistory(ctx, s.llm, history, s.logger)

	if err := s.messages.Insert(ctx, messages.Message{
		InstanceID: wc.InstanceID,
		Phone:      event.Phone,
		Role:       messages.RoleUser,
		Content:    input.Content,
		MediaType:  &input.MediaType,
		MediaURL:   input.MediaURL,
	}); err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}

	prompt := buildSystemPrompt(*wc, s.now().In(s.loc), isReturning)
	llmMessages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
	}
	if summary != "" {
		llmMessages = append(llmMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "=== RESUMO DAS MENSAGENS ANTERIORES ===\n" + summary,
		})
	}
	for _, m := range recent {
		llmMessages = append(llmMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	llmMessages = append(llmMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input.Content,
	})

	reply, err := s.generateReply(ctx, llmMessages, *wc, creds, event, patient)
	if err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}

	chunkCount, err := s.dispatcher.DispatchText(ctx, creds, event.Phone, reply)
	if err != nil {
		span.RecordError(err)
		return gateway.Outcome{}, err
	}
	s.metrics.ObserveReplyChunks(chunkCount)

	return gateway.Outcome{
		Status:      gateway.StatusReplied,
		ReplyLength: utf8.RuneCountInString(reply),
	}, nil
}

// generateReply runs the two-phase tool loop: one completion that may request
// tools, sequential tool execution, then a closing completion without tools.
func (s *Service) generateReply(
	ctx context.Context,
	llmMessages []openai.ChatCompletionMessage,
	wc clinic.WebhookContext,
	creds gateway.InstanceCreds,
	event gateway.Event,
	patient *patients.Patient,
) (string, error) {
	ctx, span := tracer.Start(ctx, "conversation.generate_reply")
	defer span.End()

	req := openai.ChatCompletionRequest{
		Messages:    llmMessages,
		Temperature: 0.7,
		MaxTokens:   500,
		Tools:       availableTools(wc.HasCalendarTools()),
		ToolChoice:  "auto",
	}
	resp, err := s.llm.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("conversation: completion failed: %w", err)
	}
	aiMessage := resp.Choices[0].Message

	if len(aiMessage.ToolCalls) == 0 {
		reply := strings.TrimSpace(aiMessage.Content)
		if reply == "" {
			reply = fallbackReply
		}
		if reply != fallbackReply {
			if err := s.persistAssistant(ctx, wc, event.Phone, reply); err != nil {
				return "", err
			}
		}
		return reply, nil
	}

	span.SetAttributes(attribute.Int("nexus.tool_calls", len(aiMessage.ToolCalls)))
	llmMessages = append(llmMessages, aiMessage)

	turn := toolTurn{
		Context:   wc,
		Creds:     creds,
		Phone:     event.Phone,
		MessageID: event.MessageID,
		Patient:   patient,
	}
	toolNames := make([]string, 0, len(aiMessage.ToolCalls))
	toolResults := make([]string, 0, len(aiMessage.ToolCalls))
	for _, call := range aiMessage.ToolCalls {
		toolNames = append(toolNames, call.Function.Name)
		result := s.tools.Execute(ctx, call, turn)
		toolResults = append(toolResults, result)
		llmMessages = append(llmMessages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    result,
		})
	}

	resp, err = s.llm.Chat(ctx, openai.ChatCompletionRequest{
		Messages:    llmMessages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: closing completion failed: %w", err)
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		reply = fallbackReply
	}

	// The persisted turn carries a system memory of which tools ran and what
	// they returned, so later turns can see e.g. an existing booking. Only
	// the plain text goes to the patient.
	memory := fmt.Sprintf("[MEMÓRIA DE SISTEMA: Usei ferramentas nesta rodada. %s]", strings.Join(toolNames, ", "))
	if len(toolResults) > 0 {
		memory += fmt.Sprintf("\nResultados obtidos da agenda: %s", strings.Join(toolResults, " | "))
	}
	if err := s.persistAssistant(ctx, wc, event.Phone, memory+"\n\n"+reply); err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Service) persistAssistant(ctx context.Context, wc clinic.WebhookContext, phone, content string) error {
	if err := s.messages.Insert(ctx, messages.Message{
		InstanceID: wc.InstanceID,
		Phone:      phone,
		Role:       messages.RoleAssistant,
		Content:    content,
	}); err != nil {
		return fmt.Errorf("conversation: failed to persist reply: %w", err)
	}
	return nil
}

// pauseAndMarkRead simulates a human opening the chat before the blue ticks
// appear. Both steps are best effort.
func (s *Service) pauseAndMarkRead(ctx context.Context, creds gateway.InstanceCreds, event gateway.Event) {
	if s.readingPause > 0 {
		timer := time.NewTimer(s.readingPause)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
	if event.MessageID == "" {
		return
	}
	if err := s.gateway.MarkRead(ctx, creds, event.Phone, event.MessageID); err != nil {
		s.logger.Warn("failed to mark message read", "error", err, "message_id", event.MessageID)
	}
}
