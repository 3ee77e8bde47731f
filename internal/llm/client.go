package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var tracer = otel.Tracer("nexus.internal.llm")

const (
	defaultModel       = "openai/gpt-4o-mini"
	completionTimeout  = 30 * time.Second
	transcribeTimeout  = 60 * time.Second
	maxAudioDownload   = 25 << 20
	summaryInstruction = "Resuma esta conversa entre um paciente e a assistente de uma clínica médica. Inclua: nome do paciente (se mencionado), motivo do contato, informações já coletadas e status do atendimento. Seja conciso (3-5 frases). Responda em português."
	describeSuffix     = "Descreva brevemente o que vê, em português, focando em aspectos relevantes para um contexto de clínica médica. Seja conciso (1-2 frases)."
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type transcriptionClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Config carries the model routing for the client. Chat, vision and summary
// completions go through an OpenAI-compatible endpoint (OpenRouter); audio
// transcription needs a direct OpenAI key and is disabled without one.
type Config struct {
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenAIAPIKey      string
	ChatModel         string
	VisionModel       string
	SummaryModel      string
}

// Client wraps the completion and transcription backends behind the small
// surface the conversation pipeline needs.
type Client struct {
	chat         chatClient
	audio        transcriptionClient
	httpClient   *http.Client
	chatModel    string
	visionModel  string
	summaryModel string
	logger       *logging.Logger
}

// NewClient builds the LLM client from config.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		panic("llm: openrouter api key required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	chatCfg := openai.DefaultConfig(cfg.OpenRouterAPIKey)
	if cfg.OpenRouterBaseURL != "" {
		chatCfg.BaseURL = cfg.OpenRouterBaseURL
	}

	var audio transcriptionClient
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		audio = openai.NewClient(cfg.OpenAIAPIKey)
	}

	return newClientWithBackends(openai.NewClientWithConfig(chatCfg), audio, cfg, logger)
}

func newClientWithBackends(chat chatClient, audio transcriptionClient, cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		chat:         chat,
		audio:        audio,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		chatModel:    modelOrDefault(cfg.ChatModel),
		visionModel:  modelOrDefault(cfg.VisionModel),
		summaryModel: modelOrDefault(cfg.SummaryModel),
		logger:       logger,
	}
}

// HasTranscription reports whether audio transcription is configured.
func (c *Client) HasTranscription() bool {
	return c.audio != nil
}

// ChatModel returns the model used when a completion request leaves Model empty.
func (c *Client) ChatModel() string {
	return c.chatModel
}

// Chat runs one chat completion. Requests without a model fall back to the
// configured chat model.
func (c *Client) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.chat")
	defer span.End()

	if req.Model == "" {
		req.Model = c.chatModel
	}
	span.SetAttributes(
		attribute.String("nexus.llm.model", req.Model),
		attribute.Int("nexus.llm.messages", len(req.Messages)),
	)

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(callCtx, req)
	if err != nil {
		span.RecordError(err)
		return openai.ChatCompletionResponse{}, fmt.Errorf("llm: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("llm: completion returned no choices")
		span.RecordError(err)
		return openai.ChatCompletionResponse{}, err
	}
	return resp, nil
}

// Transcribe downloads the voice note and runs it through Whisper,
// returning the Portuguese transcript.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if c.audio == nil {
		return "", errors.New("llm: transcription not configured")
	}
	ctx, span := tracer.Start(ctx, "llm.transcribe")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: failed to build audio request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: failed to download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("llm: audio download returned status %d", resp.StatusCode)
		span.RecordError(err)
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	out, err := c.audio.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   io.LimitReader(resp.Body, maxAudioDownload),
		FilePath: "audio.ogg",
		Language: "pt",
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: transcription failed: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", errors.New("llm: transcription returned empty text")
	}
	return text, nil
}

// DescribeImage asks the vision model for a short description of the image.
// The patient's caption, when present, is passed along for context.
func (c *Client) DescribeImage(ctx context.Context, imageURL, caption string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.describe_image")
	defer span.End()

	instruction := "O paciente enviou esta imagem. " + describeSuffix
	if strings.TrimSpace(caption) != "" {
		instruction = fmt.Sprintf("O paciente enviou esta imagem com a legenda: %q. %s", caption, describeSuffix)
	}

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 200,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: instruction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: image description failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: image description returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("llm: image description returned empty text")
	}
	return text, nil
}

// Summarize condenses an older stretch of conversation into one paragraph.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.summarize")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.summaryModel,
		Temperature: 0.3,
		MaxTokens:   300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryInstruction},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: summarization returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("llm: summarization returned empty text")
	}
	return text, nil
}

func modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return defaultModel
	}
	return model
}
