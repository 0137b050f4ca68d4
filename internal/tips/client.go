// Package tips calls the external diagnostic-tip generator. The generator
// is stateless (ticket description in, free text out) and best-effort: any
// failure surfaces as ErrTipsUnavailable, never as a fatal error.
package tips

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/models"
)

// Client talks to the tip generator endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
}

// NewClient builds a tips client from TIPS_ENDPOINT and TIPS_API_KEY.
func NewClient() *Client {
	endpoint := os.Getenv("TIPS_ENDPOINT")
	httpClient := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(0)
	if key := os.Getenv("TIPS_API_KEY"); key != "" {
		httpClient.SetHeader("Authorization", "Bearer "+key)
	}
	return &Client{http: httpClient, endpoint: endpoint}
}

type tipRequest struct {
	Prompt string `json:"prompt"`
}

type tipResponse struct {
	Text string `json:"text"`
}

// DiagnosticTips requests repair suggestions for a ticket's device and
// reported fault.
func (c *Client) DiagnosticTips(ctx context.Context, item *models.ServiceItem) (string, error) {
	if c.endpoint == "" {
		return "", apperr.ErrTipsUnavailable
	}

	prompt := fmt.Sprintf(
		"Suggest concise diagnostic steps for this repair ticket, as a short list.\nDevice: %s\nModel: %s\nReported fault: %s",
		item.DeviceName, item.DeviceModel, item.ReportedFault)

	// Some generator deployments answer without a JSON content type; force
	// the decode so the reply is not silently dropped.
	var result tipResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tipRequest{Prompt: prompt}).
		SetResult(&result).
		ForceContentType("application/json").
		Post(c.endpoint)
	if err != nil {
		log.WithError(err).Warn("tip generator request failed")
		return "", apperr.ErrTipsUnavailable
	}
	if resp.IsError() || result.Text == "" {
		log.WithField("status", resp.StatusCode()).Warn("tip generator returned no usable answer")
		return "", apperr.ErrTipsUnavailable
	}
	return result.Text, nil
}
