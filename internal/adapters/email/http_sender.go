// Package email provides outbound email transports for magic links.
package email

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

	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.EmailSender = (*HTTPSender)(nil)

// HTTPConfig configures delivery through a transactional email HTTP API.
type HTTPConfig struct {
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
	Client  *http.Client
}

// HTTPSender posts messages as JSON to an email API with bearer authentication.
// Each Send makes exactly one request.
type HTTPSender struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewHTTPSender builds an HTTP email sender. Callers should pass a validated config.
func NewHTTPSender(cfg HTTPConfig) (*HTTPSender, error) {
	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		return nil, errors.New("email api url is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("email from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &HTTPSender{
		apiURL: apiURL,
		apiKey: strings.TrimSpace(cfg.APIKey),
		from:   from,
		client: hc,
	}, nil
}

type apiMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

func (s *HTTPSender) Send(ctx context.Context, msg ports.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("email recipient is required")
	}
	body, err := json.Marshal(apiMessage{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp)
	}
	return drain(resp)
}

func drain(resp *http.Response) error {
	_, copyErr := io.Copy(io.Discard, resp.Body)
	closeErr := resp.Body.Close()
	var errs []error
	if copyErr != nil {
		errs = append(errs, fmt.Errorf("drain email response body: %w", copyErr))
	}
	if closeErr != nil {
		errs = append(errs, fmt.Errorf("close response body: %w", closeErr))
	}
	return errors.Join(errs...)
}

func handleErrorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	closeErr := resp.Body.Close()
	if readErr != nil || closeErr != nil {
		return errors.Join(
			fmt.Errorf("email api %s", resp.Status),
			readErr,
			closeErr,
		)
	}
	return fmt.Errorf("email api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}
