package conversation

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/internal/messages"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var memoryTracer = otel.Tracer("nexus.internal.conversation.memory")

const (
	historyWindow = 30
	keepRecent    = 20
)

type summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// condenseHistory keeps the newest turns verbatim and compresses anything
// older into a summary. A failed summarization drops the older turns rather
// than failing the event; losing distant context is cheaper than losing the
// reply.
func condenseHistory(ctx context.Context, llm summarizer, history []messages.Message, logger *logging.Logger) (recent []messages.Message, summary string) {
	if len(history) <= keepRecent {
		return history, ""
	}

	ctx, span := memoryTracer.Start(ctx, "conversation.condense_history")
	defer span.End()

	older := history[:len(history)-keepRecent]
	recent = history[len(history)-keepRecent:]
	span.SetAttributes(attribute.Int("nexus.summarized_turns", len(older)))

	summary, err := llm.Summarize(ctx, historyTranscript(older))
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to summarize older turns", "error", err, "turns", len(older))
		return recent, ""
	}
	return recent, summary
}

func historyTranscript(turns []messages.Message) string {
	var b strings.Builder
	for i, m := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := "Assistente"
		if m.Role == messages.RoleUser {
			speaker = "Paciente"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
