// Package zapi is the outbound client for the Z-API WhatsApp gateway.
package zapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// SendResult is the explicit outcome of an outbound call. The client never
// returns transport failures as errors to its callers; the router decides how
// a failed send shapes the webhook response.
type SendResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Client talks to one Z-API instance.
type Client struct {
	baseURL      string
	instance     string
	token        string
	clientToken  string
	sendTextPath string
	httpClient   *http.Client
}

// Options configure a Client.
type Options struct {
	BaseURL      string
	Instance     string
	Token        string
	ClientToken  string
	SendTextPath string
}

// New creates a gateway client with a bounded request timeout.
func New(opts Options) *Client {
	if opts.SendTextPath == "" {
		opts.SendTextPath = "/send-text"
	}
	return &Client{
		baseURL:      opts.BaseURL,
		instance:     opts.Instance,
		token:        opts.Token,
		clientToken:  opts.ClientToken,
		sendTextPath: opts.SendTextPath,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
	}
}

type sendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendImageRequest struct {
	Phone   string `json:"phone"`
	Image   string `json:"image"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// SendText delivers a text message.
func (c *Client) SendText(ctx context.Context, phone, message string) SendResult {
	return c.post(ctx, c.sendTextPath, sendTextRequest{Phone: phone, Message: message})
}

// SendImage delivers an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, phone, imageURL, caption string) SendResult {
	return c.post(ctx, "/send-image", sendImageRequest{Phone: phone, Image: imageURL, Caption: caption})
}

// post sends one payload with a small bounded retry: up to 3 attempts,
// exponential backoff from 400ms capped at 3s, jittered. 4xx responses are
// not retried; the gateway will reject the same payload again.
func (c *Client) post(ctx context.Context, path string, payload interface{}) SendResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Success: false, Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s%s", c.baseURL, c.instance, c.token, path)

	var result SendResult
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 400 * time.Millisecond
	policy.MaxInterval = 3 * time.Second

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Client-Token", c.clientToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		result.StatusCode = resp.StatusCode
		if resp.StatusCode >= 500 {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("gateway returned status %d", resp.StatusCode))
		}

		var decoded sendResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err == nil {
			if decoded.MessageID != "" {
				result.MessageID = decoded.MessageID
			} else if decoded.ID != "" {
				result.MessageID = decoded.ID
			} else {
				result.MessageID = decoded.ZaapID
			}
		}
		result.Success = true
		return nil
	}

	err = backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx))
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		log.Error().Err(err).Str("path", path).Msg("Gateway send failed")
		return result
	}

	log.Info().Str("path", path).Str("message_id", result.MessageID).Msg("Gateway send ok")
	return result
}
