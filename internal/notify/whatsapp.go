package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhatsAppSender is the outbound WhatsApp seam.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// HTTPWhatsAppSender posts messages to a WhatsApp gateway (Cloud API shaped:
// bearer token, JSON body).
type HTTPWhatsAppSender struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPWhatsAppSender returns nil when no gateway is configured; callers
// treat a nil sender as "whatsapp channel disabled".
func NewHTTPWhatsAppSender(baseURL, token string, logger zerolog.Logger) *HTTPWhatsAppSender {
	if baseURL == "" {
		return nil
	}
	return &HTTPWhatsAppSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type whatsAppPayload struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (s *HTTPWhatsAppSender) SendMessage(ctx context.Context, to, body string) error {
	payload := whatsAppPayload{To: to, Type: "text"}
	payload.Text.Body = body

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp gateway status %d: %s", resp.StatusCode, snippet)
	}

	s.logger.Debug().Str("to", to).Msg("whatsapp message sent")
	return nil
}
