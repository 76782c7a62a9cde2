// Package sms delivers payer confirmations through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/logctx"
)

// ErrSendFailed wraps every delivery failure, including gateway rejections.
var ErrSendFailed = errors.New("sms send failed")

type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

type gatewayRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

type gatewayError struct {
	Error string `json:"error"`
}

// HTTPGateway posts one JSON message per call. It does not retry; a failed
// confirmation is reported to the caller and never replayed.
type HTTPGateway struct {
	url      string
	apiKey   string
	senderID string
	client   *http.Client
}

func NewHTTPGateway(cfg config.SMSConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		url:      cfg.GatewayURL,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Send(ctx context.Context, phone, text string) error {
	if phone == "" {
		return fmt.Errorf("%w: empty recipient", ErrSendFailed)
	}
	body, err := json.Marshal(gatewayRequest{To: phone, Message: text, SenderID: g.senderID})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gatewayError
		if json.Unmarshal(respBody, &ge) == nil && ge.Error != "" {
			return fmt.Errorf("%w: gateway status %d: %s", ErrSendFailed, resp.StatusCode, ge.Error)
		}
		return fmt.Errorf("%w: gateway status %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

// LogSender only logs the message. Used when no gateway is configured.
type LogSender struct {
	log *zap.SugaredLogger
}

func NewLogSender(log *zap.SugaredLogger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(ctx context.Context, phone, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("sms_logged", "phone", phone, "text", text)
	return nil
}

// NewSender picks the gateway when a URL is configured, the log sender otherwise.
func NewSender(cfg *config.Config, log *zap.SugaredLogger) Sender {
	if cfg.SMS.GatewayURL == "" {
		log.Warnw("sms gateway url is empty, confirmations will only be logged")
		return NewLogSender(log)
	}
	return NewHTTPGateway(cfg.SMS)
}
