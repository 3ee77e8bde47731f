package gateway

import (
	"strings"
	"testing"
)

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSegmentEmptyInput(t *testing.T) {
	if got := Segment(""); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %v", got)
	}
	if got := Segment("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %v", got)
	}
}

func TestSegmentShortInputSingleChunk(t *testing.T) {
	input := "  Olá! Podemos agendar sua consulta para amanhã às 14h. "
	chunks := Segment(input)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.TrimSpace(input) {
		t.Fatalf("expected trimmed input back, got %q", chunks[0])
	}
}

func TestSegmentReconstructsInput(t *testing.T) {
	sentence := "A consulta custa R$ 250,00 e inclui avaliação completa com o especialista. "
	input := strings.Repeat(sentence, 20)

	chunks := Segment(input)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d bytes, got %d", len(input), len(chunks))
	}
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(chunk) > segmentHardLimit {
			t.Fatalf("chunk %d exceeds hard limit: %d bytes", i, len(chunk))
		}
	}
	joined := normalizeWhitespace(strings.Join(chunks, " "))
	if joined != normalizeWhitespace(input) {
		t.Fatalf("re-joined chunks diverge from input:\n%q\nvs\n%q", joined, normalizeWhitespace(input))
	}
}

func TestSegmentNeverSplitsURLs(t *testing.T) {
	url := "https://clinica.example.com.br/agendamento/confirmar"
	filler := strings.Repeat("Estamos à disposição para qualquer dúvida sobre o atendimento. ", 6)
	input := filler + "Acesse " + url + " para confirmar. " + filler

	chunks := Segment(input)
	var containing string
	for _, chunk := range chunks {
		if strings.Contains(chunk, "clinica.example.com.br") {
			containing = chunk
			break
		}
	}
	if containing == "" {
		t.Fatalf("url lost during segmentation: %v", chunks)
	}
	if !strings.Contains(containing, url) {
		t.Fatalf("url was split across chunks: %q", containing)
	}
}

func TestSegmentDoesNotCutAfterAbbreviation(t *testing.T) {
	// Pad so the abbreviation's period sits inside the search window past the
	// floor, where a naive splitter would cut.
	pad := strings.Repeat("Seja muito bem-vindo à nossa clínica, estamos aqui para ajudar. ", 2)
	input := pad + "Consulta com Dr. Silva às 14h marcada com sucesso para você, tudo certo! " + pad + pad

	for _, chunk := range Segment(input) {
		trimmed := strings.TrimSpace(chunk)
		if strings.HasSuffix(trimmed, "Dr.") || strings.HasSuffix(trimmed, "Dra.") {
			t.Fatalf("chunk cut after abbreviation: %q", trimmed)
		}
	}
}

func TestSegmentRestoresNumberedLists(t *testing.T) {
	input := "Temos duas opções:\n1. Consulta presencial\n2. Teleconsulta"
	chunks := Segment(input)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
	if !strings.Contains(chunks[0], "1. Consulta presencial") || !strings.Contains(chunks[0], "2. Teleconsulta") {
		t.Fatalf("numbered list not restored: %q", chunks[0])
	}
	if strings.Contains(chunks[0], dotToken) || strings.Contains(chunks[0], urlDotToken) {
		t.Fatalf("placeholder leaked into output: %q", chunks[0])
	}
}

func TestSegmentPrefersSentenceBoundaries(t *testing.T) {
	first := "Esta primeira frase tem um tamanho razoável para preencher o espaço mínimo antes do corte acontecer, chegando perto do tamanho ideal da mensagem que buscamos aqui."
	second := "A segunda frase continua a conversa com mais detalhes sobre os nossos serviços e também tem um tamanho considerável para forçar a separação em duas partes distintas."
	third := "E a terceira encerra explicando os próximos passos do agendamento da sua consulta na clínica, para que tudo fique claro."
	input := first + " " + second + " " + third

	chunks := Segment(input)
	if len(chunks) < 2 {
		t.Fatalf("expected split, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("first chunk should end at a sentence boundary: %q", chunks[0])
	}
}

func TestSegmentForcedCutWithoutBoundaries(t *testing.T) {
	// No terminators, no newlines, no spaces: the splitter must still make
	// progress and respect the soft maximum per forced cut.
	input := strings.Repeat("a", 1000)
	chunks := Segment(input)
	if len(chunks) < 2 {
		t.Fatalf("expected forced cuts, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > segmentSoftMax {
			t.Fatalf("forced chunk %d exceeds soft max: %d", i, len(chunk))
		}
	}
	if len(strings.Join(chunks, "")) != 1000 {
		t.Fatalf("forced cuts lost content")
	}
}

func TestSegmentKeepsTrailingEmojiWithSentence(t *testing.T) {
	sentence := "Sua consulta foi confirmada com sucesso e estamos esperando por você aqui na clínica, até breve! 😊 "
	input := strings.Repeat(sentence, 8)
	for _, chunk := range Segment(input) {
		if strings.HasPrefix(chunk, "😊") {
			t.Fatalf("emoji separated from its sentence: %q", chunk)
		}
	}
}
