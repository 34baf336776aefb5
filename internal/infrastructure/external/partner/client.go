package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"go.uber.org/zap"
)

// Config holds booking partner settings
type Config struct {
	BaseURL        string
	APIKey         string
	CallbackSecret string
	Timeout        time.Duration
}

// Client calls the booking partner's finalize endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new booking partner client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Finalize implements port.BookingPartner
func (c *Client) Finalize(ctx context.Context, req port.FinalizeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal finalize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bookings/finalize", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Finalize request failed",
			zap.String("reference_code", req.ReferenceCode),
			zap.Error(err))
		return fmt.Errorf("finalize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Partner rejected finalize",
			zap.String("reference_code", req.ReferenceCode),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)))
		return fmt.Errorf("partner returned status %d", resp.StatusCode)
	}

	c.logger.Info("Booking finalized with partner",
		zap.String("reference_code", req.ReferenceCode))
	return nil
}

// NoopPartner is used when no partner endpoint is configured
type NoopPartner struct {
	logger *zap.Logger
}

// NewNoopPartner creates a partner that only logs finalize requests
func NewNoopPartner(logger *zap.Logger) *NoopPartner {
	return &NoopPartner{logger: logger}
}

// Finalize implements port.BookingPartner
func (p *NoopPartner) Finalize(ctx context.Context, req port.FinalizeRequest) error {
	p.logger.Info("Partner not configured, skipping finalize",
		zap.String("reference_code", req.ReferenceCode))
	return nil
}

var (
	_ port.BookingPartner = (*Client)(nil)
	_ port.BookingPartner = (*NoopPartner)(nil)
)
