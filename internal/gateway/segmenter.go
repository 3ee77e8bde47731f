package gateway

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunking thresholds, in bytes of UTF-8 text. WhatsApp renders long single
// bubbles poorly, so replies are split at sentence boundaries into chunks
// between the floor and the hard limit, aiming for the ideal length.
const (
	segmentIdeal     = 250
	segmentSoftMax   = 400
	segmentHardLimit = 800
	segmentFloor     = 120
)

const (
	urlDotToken = "___PONTO_URL___"
	dotToken    = "___PONTO___"
)

var (
	urlPattern          = regexp.MustCompile(`https?://[^\s]+`)
	numberedListPattern = regexp.MustCompile(`(\d+)\.\s`)

	// Sentence terminators optionally trailed by emoji, which belong to the
	// sentence they close.
	sentenceEndPattern = regexp.MustCompile(`[.!?](\s*[\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{1F000}-\x{1FAFF}\x{FE0F}])*`)

	// Titles, units and other abbreviations whose trailing period is not a
	// sentence boundary.
	abbreviations = []string{
		"Dr.", "Dra.", "Sr.", "Sra.", "Jr.", "Prof.", "Profa.",
		"etc.", "ex.", "obs.", "pág.", "tel.", "cel.",
		"min.", "máx.", "aprox.", "nº.",
	}
	abbreviationPatterns = compileAbbreviations()
)

func compileAbbreviations() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(abbreviations))
	for _, abbrev := range abbreviations {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(abbrev)))
	}
	return patterns
}

func protectURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(url string) string {
		return strings.ReplaceAll(url, ".", urlDotToken)
	})
}

func protectAbbreviations(text string) string {
	for _, pattern := range abbreviationPatterns {
		text = pattern.ReplaceAllStringFunc(text, func(match string) string {
			return strings.ReplaceAll(match, ".", dotToken)
		})
	}
	return text
}

func protectNumberedLists(text string) string {
	return numberedListPattern.ReplaceAllString(text, "${1}"+dotToken+" ")
}

func restorePlaceholders(text string) string {
	text = strings.ReplaceAll(text, urlDotToken, ".")
	return strings.ReplaceAll(text, dotToken, ".")
}

// findCutPoint returns the end offset of the best sentence boundary in text:
// the first boundary at or past the ideal length, or failing that the last
// boundary at or past the floor. Returns -1 when no boundary qualifies.
func findCutPoint(text string, floor int) int {
	bestCut := -1
	for _, match := range sentenceEndPattern.FindAllStringIndex(text, -1) {
		end := match[1]
		if end >= floor {
			bestCut = end
			if end >= segmentIdeal {
				break
			}
		}
	}
	return bestCut
}

// runeBoundary backs n off to the nearest UTF-8 rune start in s.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// Segment splits one reply into ordered WhatsApp-safe chunks. It is a pure
// function: no state survives between calls, and re-joining the chunks
// reconstructs the input modulo collapsed whitespace.
func Segment(message string) []string {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	text := protectURLs(message)
	text = protectAbbreviations(text)
	text = protectNumberedLists(text)

	// Collapse blank lines; surviving line breaks remain as cut evidence.
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	remaining := strings.Join(lines, "\n")

	var parts []string
	for strings.TrimSpace(remaining) != "" {
		if len(remaining) <= segmentSoftMax {
			parts = append(parts, strings.TrimSpace(remaining))
			break
		}

		window := remaining[:runeBoundary(remaining, segmentSoftMax)]
		cut := findCutPoint(window, segmentFloor)
		if cut <= 0 {
			expanded := remaining[:runeBoundary(remaining, segmentHardLimit)]
			cut = findCutPoint(expanded, segmentFloor)
		}
		if cut <= 0 {
			cut = strings.LastIndex(window, "\n")
			if cut <= segmentFloor {
				cut = strings.LastIndex(window, " ")
			}
			if cut <= segmentFloor {
				cut = len(window)
			}
		}

		parts = append(parts, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}

	for i, part := range parts {
		parts[i] = restorePlaceholders(part)
	}
	return parts
}
