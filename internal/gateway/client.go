package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

var clientTracer = otel.Tracer("nexus.internal.gateway.client")

// InstanceCreds identifies one clinic's gateway connection for outbound calls.
// The optional ClientToken is an account-level secondary credential some
// Z-API plans require on every request.
type InstanceCreds struct {
	InstanceID  string
	Token       string
	ClientToken string
}

// SendTextRequest is one outbound text chunk with its humanization delays,
// both in seconds. The gateway paces real-world delivery; this process does
// not sleep between chunks.
type SendTextRequest struct {
	Phone        string `json:"phone"`
	Message      string `json:"message"`
	DelayMessage int    `json:"delayMessage"`
	DelayTyping  int    `json:"delayTyping"`
}

// Client calls the Z-API outbound endpoints: send-text, send-reaction and
// read-message, each scoped by per-instance credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a gateway client for the given Z-API base URL.
func NewClient(baseURL string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		panic("gateway: base url required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SendText dispatches one chunk. Single attempt; the caller decides whether a
// failure matters.
func (c *Client) SendText(ctx context.Context, creds InstanceCreds, req SendTextRequest) error {
	if strings.TrimSpace(req.Phone) == "" {
		return errors.New("gateway: phone required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errors.New("gateway: message required")
	}

	ctx, span := clientTracer.Start(ctx, "gateway.send_text")
	defer span.End()
	span.SetAttributes(
		attribute.String("nexus.instance_id", creds.InstanceID),
		attribute.Int("nexus.delay_message", req.DelayMessage),
	)

	if err := c.post(ctx, creds, "send-text", req); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// SendReaction reacts to a specific inbound message with an emoji.
func (c *Client) SendReaction(ctx context.Context, creds InstanceCreds, phone, messageID, emoji string) error {
	if strings.TrimSpace(messageID) == "" {
		return errors.New("gateway: message id required")
	}
	ctx, span := clientTracer.Start(ctx, "gateway.send_reaction")
	defer span.End()

	payload := map[string]string{
		"phone":     phone,
		"messageId": messageID,
		"reaction":  emoji,
	}
	if err := c.post(ctx, creds, "send-reaction", payload); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// MarkRead flags the inbound message as read (blue ticks). Best effort.
func (c *Client) MarkRead(ctx context.Context, creds InstanceCreds, phone, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return errors.New("gateway: message id required")
	}
	ctx, span := clientTracer.Start(ctx, "gateway.mark_read")
	defer span.End()

	payload := map[string]string{
		"phone":     phone,
		"messageId": messageID,
	}
	if err := c.post(ctx, creds, "read-message", payload); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, creds InstanceCreds, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: failed to marshal %s payload: %w", endpoint, err)
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, creds.InstanceID, creds.Token, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds.ClientToken != "" {
		req.Header.Set("Client-Token", creds.ClientToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("gateway: %s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
