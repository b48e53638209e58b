package dict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "pixcore/pkg/domain-errors"
)

// Client talks to the registry over its REST API and implements all three
// gateway ports. Failure classification happens here: the engine only sees
// transient (retry) or permanent (park) codes.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ConfirmEntry(ctx context.Context, req ConfirmEntryRequest) error {
	return c.post(ctx, "/entries/"+req.KeyID+"/confirm", req)
}

func (c *Client) DeleteEntry(ctx context.Context, req DeleteEntryRequest) error {
	return c.post(ctx, "/entries/"+req.KeyID+"/delete", req)
}

func (c *Client) CreateClaim(ctx context.Context, req ClaimRequest) error {
	return c.post(ctx, "/claims", req)
}

func (c *Client) CancelClaim(ctx context.Context, req ClaimRequest) error {
	return c.post(ctx, "/claims/"+req.KeyID+"/cancel", req)
}

func (c *Client) ConfirmClaim(ctx context.Context, req ClaimRequest) error {
	return c.post(ctx, "/claims/"+req.KeyID+"/confirm", req)
}

func (c *Client) GetEntryStatus(ctx context.Context, keyID string) (string, error) {
	return c.getStatus(ctx, "/entries/"+keyID)
}

func (c *Client) ReportInfraction(ctx context.Context, req InfractionReport) error {
	return c.post(ctx, "/infractions", req)
}

func (c *Client) AcknowledgeInfraction(ctx context.Context, infractionID string) error {
	return c.post(ctx, "/infractions/"+infractionID+"/acknowledge", nil)
}

func (c *Client) CloseInfraction(ctx context.Context, req InfractionClosure) error {
	return c.post(ctx, "/infractions/"+req.InfractionID+"/close", req)
}

func (c *Client) CancelInfraction(ctx context.Context, infractionID string) error {
	return c.post(ctx, "/infractions/"+infractionID+"/cancel", nil)
}

func (c *Client) GetInfractionStatus(ctx context.Context, infractionID string) (string, error) {
	return c.getStatus(ctx, "/infractions/"+infractionID)
}

func (c *Client) CloseRefund(ctx context.Context, req RefundClosure) error {
	return c.post(ctx, "/refunds/"+req.RefundID+"/close", req)
}

func (c *Client) CancelRefund(ctx context.Context, req RefundCancellation) error {
	return c.post(ctx, "/refunds/"+req.RefundID+"/cancel", req)
}

func (c *Client) GetRefundStatus(ctx context.Context, refundID string) (string, error) {
	return c.getStatus(ctx, "/refunds/"+refundID)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode registry request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build registry request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeGatewayTransient, "registry unreachable")
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

func (c *Client) getStatus(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build registry request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeGatewayTransient, "registry unreachable")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeGatewayTransient, "decode registry response")
	}
	return out.Status, nil
}

// classifyStatus maps HTTP status classes onto the retry decision. Server
// errors and throttling are transient; any other client error means the
// registry rejected the request and a retry would be rejected again.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readErrorDetail(resp.Body)
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return dErrors.Newf(dErrors.CodeGatewayTransient,
			"registry returned %d: %s", resp.StatusCode, detail)
	default:
		return dErrors.Newf(dErrors.CodeGatewayPermanent,
			"registry rejected request with %d: %s", resp.StatusCode, detail)
	}
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%.200s", string(raw))
}
