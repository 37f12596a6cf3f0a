// Package inference calls the external restoration models. A call either
// returns the restored image bytes or an error wrapping one of the sentinel
// errors below. Calls are never retried here.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrModel       = errors.New("model rejected input")
	ErrRateLimited = errors.New("provider rate limited")
	ErrTimeout     = errors.New("provider timed out")
	ErrTransient   = errors.New("provider temporarily unavailable")
)

const (
	maxResponseBytes = 64 << 20
	maxErrorBody     = 512
)

type Provider interface {
	Restore(ctx context.Context, modelID string, image []byte) ([]byte, error)
}

type HTTPProvider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (p *HTTPProvider) Restore(ctx context.Context, modelID string, image []byte) ([]byte, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("%w: model id is required", ErrModel)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrModel)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/models/%s/restore", p.baseURL, url.PathEscape(modelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("model", modelID).
			Dur("elapsed", elapsed).
			Msg("inference request error")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn().
			Str("model", modelID).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("inference request failed")
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrTransient, maxResponseBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrTransient)
	}

	log.Info().
		Str("model", modelID).
		Int("bytes", len(body)).
		Dur("elapsed", elapsed).
		Msg("inference request successful")

	return body, nil
}

func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrTimeout, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, status)
	default:
		if body == "" {
			return fmt.Errorf("%w: status %d", ErrModel, status)
		}
		return fmt.Errorf("%w: status %d: %s", ErrModel, status, body)
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
