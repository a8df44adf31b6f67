package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
)

// APIError is a non-2xx response from the storefront API
type APIError struct {
	StatusCode int
	Message    string
	Details    string
	Retriable  bool
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Client talks to the admin routes of the storefront API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL authenticating with an admin bearer token
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// ListOrders lists orders, optionally filtered by status
func (c *Client) ListOrders(ctx context.Context, status string, limit int) ([]models.Order, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	var out struct {
		Orders []models.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/orders?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// GetOrder fetches the canonical view of one order
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*service.OrderView, error) {
	var view service.OrderView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/admin/orders/%d", orderID), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SetOrderStatus stores status and returns the server's copy of the order
func (c *Client) SetOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	var order models.Order
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/admin/orders/%d/status", orderID), body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder hard-deletes an order
func (c *Client) DeleteOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/admin/orders/%d", orderID), nil, nil)
}

// Analytics fetches the dashboard snapshot for rangeCode
func (c *Client) Analytics(ctx context.Context, rangeCode string) (*service.AnalyticsSnapshot, error) {
	var snap service.AnalyticsSnapshot
	path := "/api/v1/admin/analytics?range=" + url.QueryEscape(rangeCode)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error     string `json:"error"`
			Details   string `json:"details"`
			Retriable bool   `json:"retriable"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    payload.Error,
			Details:    payload.Details,
			Retriable:  payload.Retriable,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
