package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"menuvista-session/config"
	"menuvista-session/internal/model"
)

// RejectedError is a well-formed response with success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return "request rejected by server: " + e.Message
}

// Client talks to the menu-session endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API rooted at baseURL. The URL is
// normalized so that both "https://host" and "https://host/api/" work.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: config.NormalizeBaseURL(baseURL),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Init negotiates the session for shortCode.
func (c *Client) Init(ctx context.Context, shortCode string, token *string, deviceID string) (*model.InitData, error) {
	var env model.Envelope[model.InitData]
	path := "/menu-session/" + url.PathEscape(shortCode) + "/init"
	status, err := c.do(ctx, http.MethodPost, path, model.InitRequest{SessionToken: token, DeviceID: deviceID}, &env)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", status)
	}
	if !env.Success {
		return nil, &RejectedError{Message: env.Message}
	}
	if env.Data.SessionToken == "" {
		return nil, errors.New("init response carries no session token")
	}
	return &env.Data, nil
}

// Status fetches the orders of the session identified by token.
func (c *Client) Status(ctx context.Context, token string) (*model.StatusData, error) {
	var env model.Envelope[model.StatusData]
	path := "/menu-session/" + url.PathEscape(token) + "/status"
	status, err := c.do(ctx, http.MethodGet, path, nil, &env)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", status)
	}
	if !env.Success {
		return nil, &RejectedError{Message: env.Message}
	}
	return &env.Data, nil
}

// PlaceOrder submits a cart. Any well-formed JSON reply is honoured
// regardless of the HTTP status, so that the server's message reaches
// the diner.
func (c *Client) PlaceOrder(ctx context.Context, token string, req model.PlaceOrderRequest) (*model.OrderSummary, error) {
	var env model.Envelope[*model.OrderSummary]
	path := "/menu-session/" + url.PathEscape(token) + "/orders"
	if _, err := c.do(ctx, http.MethodPost, path, req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &RejectedError{Message: env.Message}
	}
	if env.Data == nil {
		return nil, errors.New("order response carries no order")
	}
	return env.Data, nil
}

// do performs one JSON request and decodes the body into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to unmarshal api response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
