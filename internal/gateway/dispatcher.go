package gateway

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var dispatcherTracer = otel.Tracer("nexus.internal.gateway.dispatcher")

const (
	typingSecondsPerChunk = 15
	minTypingDelaySeconds = 2
	maxTypingDelaySeconds = 15
	interChunkGapSeconds  = 1
)

type textSender interface {
	SendText(ctx context.Context, creds InstanceCreds, req SendTextRequest) error
}

// Dispatcher splits a reply into conversational chunks and hands them all to
// the gateway at once, each carrying delays that make the gateway deliver
// them in order with a human typing cadence.
type Dispatcher struct {
	sender textSender
	logger *logging.Logger
}

// NewDispatcher builds a dispatcher on top of the gateway client.
func NewDispatcher(client *Client, logger *logging.Logger) *Dispatcher {
	if client == nil {
		panic("gateway: client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sender: client, logger: logger}
}

func newDispatcherWithSender(sender textSender, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

// DispatchText segments text, computes the per-chunk delays and fires every
// send concurrently. Returns the number of chunks handed to the gateway. A
// chunk that fails is logged and dropped; the remaining chunks still go out.
func (d *Dispatcher) DispatchText(ctx context.Context, creds InstanceCreds, phone, text string) (int, error) {
	ctx, span := dispatcherTracer.Start(ctx, "gateway.dispatch_text")
	defer span.End()

	chunks := Segment(text)
	span.SetAttributes(attribute.Int("nexus.chunks", len(chunks)))
	if len(chunks) == 0 {
		return 0, nil
	}

	requests := make([]SendTextRequest, len(chunks))
	cumulative := 0
	for i, chunk := range chunks {
		typing := typingDelaySeconds(chunk)
		requests[i] = SendTextRequest{
			Phone:        phone,
			Message:      chunk,
			DelayMessage: cumulative,
			DelayTyping:  typing,
		}
		cumulative += typing + interChunkGapSeconds
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(index int, req SendTextRequest) {
			defer wg.Done()
			if err := d.sender.SendText(ctx, creds, req); err != nil {
				d.logger.Error("failed to send reply chunk",
					"error", err,
					"chunk_index", index,
					"instance_id", creds.InstanceID,
				)
			}
		}(i, req)
	}
	wg.Wait()

	return len(chunks), nil
}

// typingDelaySeconds scales the typing indicator with message length, one
// second per 15 characters, clamped to [2, 15].
func typingDelaySeconds(chunk string) int {
	n := utf8.RuneCountInString(chunk)
	delay := (n + typingSecondsPerChunk - 1) / typingSecondsPerChunk
	if delay < minTypingDelaySeconds {
		return minTypingDelaySeconds
	}
	if delay > maxTypingDelaySeconds {
		return maxTypingDelaySeconds
	}
	return delay
}
