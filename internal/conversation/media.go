package conversation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var mediaTracer = otel.Tracer("nexus.internal.conversation.media")

type mediaClient interface {
	HasTranscription() bool
	Transcribe(ctx context.Context, audioURL string) (string, error)
	DescribeImage(ctx context.Context, imageURL, caption string) (string, error)
}

// normalizedInput is what any supported event collapses into before the model
// sees it: plain text, with media reduced to a bracketed description.
type normalizedInput struct {
	Content   string
	MediaType string
	MediaURL  *string
}

// mediaNormalizer turns audio, image and document events into text. Failures
// degrade to a placeholder the model can acknowledge; they never abort the
// turn.
type mediaNormalizer struct {
	llm    mediaClient
	logger *logging.Logger
}

func newMediaNormalizer(llm mediaClient, logger *logging.Logger) *mediaNormalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &mediaNormalizer{llm: llm, logger: logger}
}

func (n *mediaNormalizer) Normalize(ctx context.Context, event gateway.Event) normalizedInput {
	kind := event.Detect()
	ctx, span := mediaTracer.Start(ctx, "conversation.normalize_media")
	defer span.End()
	span.SetAttributes(attribute.String("nexus.kind", string(kind)))

	switch kind {
	case gateway.KindText:
		return normalizedInput{Content: event.Text.Message, MediaType: "text"}

	case gateway.KindAudio:
		url := event.Audio.AudioURL
		content := "[Paciente enviou um áudio que não pôde ser transcrito]"
		if n.llm != nil && n.llm.HasTranscription() {
			transcript, err := n.llm.Transcribe(ctx, url)
			if err != nil {
				span.RecordError(err)
				n.logger.Error("failed to transcribe voice note", "error", err, "seconds", event.Audio.Seconds)
			} else {
				content = transcript
			}
		}
		return normalizedInput{Content: content, MediaType: "audio", MediaURL: &url}

	case gateway.KindImage:
		url := event.Image.ImageURL
		caption := event.Image.Caption
		var content string
		description, err := n.describe(ctx, url, caption)
		switch {
		case err == nil && caption != "":
			content = fmt.Sprintf("[Imagem enviada pelo paciente: %s. Legenda: %q]", description, caption)
		case err == nil:
			content = fmt.Sprintf("[Imagem enviada pelo paciente: %s]", description)
		case caption != "":
			content = fmt.Sprintf("[Paciente enviou uma imagem com legenda: %q]", caption)
		default:
			content = "[Paciente enviou uma imagem]"
		}
		if err != nil {
			span.RecordError(err)
			n.logger.Error("failed to describe image", "error", err)
		}
		return normalizedInput{Content: content, MediaType: "image", MediaURL: &url}

	case gateway.KindDocument:
		url := event.Document.DocumentURL
		fileName := event.Document.FileName
		if fileName == "" {
			fileName = "documento"
		}
		return normalizedInput{
			Content:   fmt.Sprintf("[Paciente enviou um documento: %q]", fileName),
			MediaType: "document",
			MediaURL:  &url,
		}
	}

	return normalizedInput{}
}

func (n *mediaNormalizer) describe(ctx context.Context, url, caption string) (string, error) {
	if n.llm == nil {
		return "", fmt.Errorf("conversation: no vision client configured")
	}
	return n.llm.DescribeImage(ctx, url, caption)
}
