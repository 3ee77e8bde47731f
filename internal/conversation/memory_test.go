package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexushealth/clinic-concierge/internal/messages"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

func historyOf(n int) []messages.Message {
	out := make([]messages.Message, n)
	for i := range out {
		role := messages.RoleUser
		if i%2 == 1 {
			role = messages.RoleAssistant
		}
		out[i] = messages.Message{Role: role, Content: fmt.Sprintf("m%d", i)}
	}
	return out
}

func TestCondenseHistoryShortConversationUntouched(t *testing.T) {
	llm := &fakeLLM{}
	recent, summary := condenseHistory(context.Background(), llm, historyOf(20), logging.Default())
	assert.Len(t, recent, 20)
	assert.Empty(t, summary)
	assert.Empty(t, llm.summarized, "no summarization below the threshold")
}

func TestCondenseHistorySummarizesOlderTurns(t *testing.T) {
	llm := &fakeLLM{summary: "resumo"}
	recent, summary := condenseHistory(context.Background(), llm, historyOf(27), logging.Default())

	require.Len(t, recent, 20)
	assert.Equal(t, "m7", recent[0].Content)
	assert.Equal(t, "resumo", summary)

	require.Len(t, llm.summarized, 1)
	assert.Contains(t, llm.summarized[0], "Paciente: m0")
	assert.Contains(t, llm.summarized[0], "Assistente: m5")
	assert.NotContains(t, llm.summarized[0], "m7")
}

func TestCondenseHistoryFailureDropsOlderTurns(t *testing.T) {
	llm := &fakeLLM{summarizeErr: errors.New("timeout")}
	recent, summary := condenseHistory(context.Background(), llm, historyOf(30), logging.Default())
	assert.Len(t, recent, 20)
	assert.Empty(t, summary)
}

func TestHistoryTranscriptSpeakerLabels(t *testing.T) {
	transcript := historyTranscript([]messages.Message{
		{Role: messages.RoleUser, Content: "oi"},
		{Role: messages.RoleAssistant, Content: "olá!"},
	})
	assert.Equal(t, "Paciente: oi\nAssistente: olá!", transcript)
}
