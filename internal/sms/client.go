// Package sms sends text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/config"
	"clinic_automation/platform/logger"
	"clinic_automation/platform/phone"

	"golang.org/x/time/rate"
)

const opSend = "sms.client.send"

// Client posts messages to the gateway's /messages endpoint.
type Client struct {
	baseURL  string
	apiKey   string
	senderID string
	region   string
	limiter  *rate.Limiter
	http     *http.Client
	log      *logger.Logger
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// NewClient returns nil when no gateway is configured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	perSecond := cfg.GetSMSRatePerSecond()
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:   cfg.GetSMSGatewayKey(),
		senderID: cfg.GetSMSSenderID(),
		region:   cfg.GetPhoneDefaultRegion(),
		limiter:  rate.NewLimiter(limit, 1),
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// SendSMS normalises the number to E.164 and posts the message. Numbers that
// cannot be parsed are a validation error, not a transport failure.
func (c *Client) SendSMS(ctx context.Context, to, text string) error {
	normalized, err := phone.ParseE164(to, c.region)
	if err != nil {
		return apperr.Validation(fmt.Sprintf("invalid phone number %q", to)).WithOp(opSend)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendRequest{To: normalized, From: c.senderID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Debug("sms sent", "to", normalized)
	return nil
}
