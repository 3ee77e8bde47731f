package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/internal/clinic"
	"github.com/nexushealth/clinic-concierge/internal/observability/metrics"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var handlerTracer = otel.Tracer("nexus.internal.gateway.handler")

// Pipeline runs the full conversational turn for one inbound event.
type Pipeline interface {
	HandleEvent(ctx context.Context, event Event) (Outcome, error)
}

// Handler handles inbound WhatsApp webhook requests from Z-API.
type Handler struct {
	pipeline Pipeline
	metrics  *metrics.WebhookMetrics
	logger   *logging.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(pipeline Pipeline, m *metrics.WebhookMetrics, logger *logging.Logger) *Handler {
	if pipeline == nil {
		panic("gateway: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{pipeline: pipeline, metrics: m, logger: logger}
}

// Webhook handles POST /webhooks/zapi requests.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "gateway.webhook")
	defer span.End()
	start := time.Now()

	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Error("failed to decode webhook payload", "error", err)
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	kind := string(event.Detect())
	span.SetAttributes(
		attribute.String("nexus.zapi_instance_id", event.InstanceID),
		attribute.String("nexus.message_id", event.MessageID),
		attribute.String("nexus.kind", kind),
	)

	if event.FromMe || event.IsGroup {
		h.metrics.ObserveInbound(kind, StatusIgnored)
		writeJSON(w, http.StatusOK, map[string]string{"status": StatusIgnored})
		return
	}

	if strings.TrimSpace(event.InstanceID) == "" || strings.TrimSpace(event.Phone) == "" {
		err := errors.New("gateway: missing instance id or phone")
		h.logger.Error("invalid webhook payload", "error", err)
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "instanceId and phone are required"})
		return
	}

	outcome, err := h.pipeline.HandleEvent(ctx, event)
	h.metrics.ObserveLatency(kind, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, clinic.ErrInstanceNotFound) {
			h.logger.Warn("webhook for unknown instance", "zapi_instance_id", event.InstanceID)
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown instance"})
			return
		}
		h.logger.Error("failed to process webhook event",
			"error", err,
			"zapi_instance_id", event.InstanceID,
			"message_id", event.MessageID,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.metrics.ObserveInbound(kind, outcome.Status)
	switch outcome.Status {
	case StatusReplied:
		h.logger.Info("webhook replied",
			"zapi_instance_id", event.InstanceID,
			"kind", kind,
			"reply_length", outcome.ReplyLength,
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":            true,
			"ai_response_length": outcome.ReplyLength,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": outcome.Status})
	}
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
