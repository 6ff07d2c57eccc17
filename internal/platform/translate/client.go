// Package translate talks to the external machine translation endpoint.
package translate

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

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/textutil"
)

const maxResponseBytes = 1 << 20

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Lang   domain.Language
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("translate: %s returned status %d: %s", e.Lang, e.Status, e.Body)
}

// Client posts one {title, body, target} request per call.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client from cfg.
func NewClient(cfg config.TranslationConfig, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("translate: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.AuthToken),
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type request struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Target string `json:"target"`
}

type response struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// Translate renders text into target. Both fields of the answer are trimmed and
// otherwise kept as returned; missing fields come back empty.
func (c *Client) Translate(ctx context.Context, text domain.LocalizedText, target domain.Language) (domain.LocalizedText, error) {
	payload, err := json.Marshal(request{Title: text.Title, Body: text.Body, Target: string(target)})
	if err != nil {
		return domain.LocalizedText{}, fmt.Errorf("translate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.LocalizedText{}, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.LocalizedText{}, fmt.Errorf("translate: %s: %w", target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.LocalizedText{}, fmt.Errorf("translate: read %s response: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.LocalizedText{}, &StatusError{Lang: target, Status: resp.StatusCode, Body: textutil.Clip(strings.TrimSpace(string(raw)), 200)}
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.LocalizedText{}, fmt.Errorf("translate: decode %s response: %w", target, err)
	}
	return domain.LocalizedText{
		Title: clean(decoded.Title),
		Body:  clean(decoded.Body),
	}, nil
}

func clean(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
