package wabridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
)

const (
	defaultTimeout = 30 * time.Second

	// APIKeyHeader authenticates the engine against the bridge process
	APIKeyHeader = "X-Bridge-Key"
)

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("BRIDGE")

var (
	CodeBridgeUnavailable = ErrRegistry.Register("BRIDGE_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway, "WhatsApp bridge is unavailable")
	CodeBridgeRejected    = ErrRegistry.Register("BRIDGE_REJECTED", errx.TypeExternal, http.StatusBadGateway, "WhatsApp bridge rejected the message")
)

func ErrBridgeUnavailable() *errx.Error { return ErrRegistry.New(CodeBridgeUnavailable) }
func ErrBridgeRejected() *errx.Error    { return ErrRegistry.New(CodeBridgeRejected) }

// ============================================================================
// Gateway
// ============================================================================

// Gateway sends workflow output through the external WhatsApp bridge
// process. Each tenant owns one bridge session addressed by tenant id.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ engine.MessageGateway = (*Gateway)(nil)

// NewGateway creates a bridge gateway
func NewGateway(baseURL, apiKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type textPayload struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Text           string `json:"text"`
}

type mediaPayload struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Ref            string `json:"ref"`
	ContentType    string `json:"content_type,omitempty"`
}

// Send posts a text message to a conversation
func (g *Gateway) Send(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, text string) error {
	return g.post(ctx, tenantID, "messages", textPayload{
		ConversationID: conversationID.String(),
		Type:           "text",
		Text:           text,
	})
}

// SendMedia posts an uploaded attachment to a conversation
func (g *Gateway) SendMedia(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, file workflow.FileRef) error {
	return g.post(ctx, tenantID, "media", mediaPayload{
		ConversationID: conversationID.String(),
		Type:           mediaType(file.ContentType),
		Name:           file.Name,
		Ref:            file.Ref,
		ContentType:    file.ContentType,
	})
}

func (g *Gateway) post(ctx context.Context, tenantID kernel.TenantID, resource string, payload any) error {
	url := fmt.Sprintf("%s/api/sessions/%s/%s", g.baseURL, tenantID.String(), resource)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errx.Wrap(err, "failed to marshal bridge payload", errx.TypeInternal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return errx.Wrap(err, "failed to create bridge request", errx.TypeInternal)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set(APIKeyHeader, g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return ErrBridgeUnavailable().WithDetail("tenant_id", tenantID.String()).WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		log.Printf("❌ Bridge error - Status: %d, Body: %s", resp.StatusCode, string(body))
		return ErrBridgeRejected().
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", string(body))
	}

	return nil
}

func mediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return string(engine.MessageTypeImage)
	case strings.HasPrefix(contentType, "audio/"):
		return string(engine.MessageTypeAudio)
	case strings.HasPrefix(contentType, "video/"):
		return string(engine.MessageTypeVideo)
	default:
		return string(engine.MessageTypeDocument)
	}
}
