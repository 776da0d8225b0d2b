package permitlinesdk

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
)

// Client is a minimal Permitline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Permit represents the API permit model (partial).
type Permit struct {
	ID             string         `json:"id"`
	ProjectAddress string         `json:"project_address"`
	CustomerName   string         `json:"customer_name"`
	PermitType     string         `json:"permit_type"`
	PermitNumber   string         `json:"permit_number,omitempty"`
	Municipality   string         `json:"municipality"`
	Status         string         `json:"status"`
	StatusHistory  []StatusUpdate `json:"status_history"`
	ApprovalDate   *string        `json:"approval_date,omitempty"`
	ExpirationDate *string        `json:"expiration_date,omitempty"`
	Warning        string         `json:"warning,omitempty"`
}

// StatusUpdate is one entry of a permit's history.
type StatusUpdate struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Notes     string `json:"notes,omitempty"`
}

// Inspection represents the inspection sub-record.
type Inspection struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	ScheduledDate *string  `json:"scheduled_date,omitempty"`
	CompletedDate *string  `json:"completed_date,omitempty"`
	Result        *string  `json:"result,omitempty"`
	Corrections   []string `json:"corrections,omitempty"`
}

// Municipality represents a reference record.
type Municipality struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	County              string   `json:"county,omitempty"`
	AverageApprovalDays int      `json:"average_approval_days,omitempty"`
	Requirements        []string `json:"requirements,omitempty"`
}

// Stats mirrors the dashboard counts.
type Stats struct {
	TotalPermits         int    `json:"totalPermits"`
	InProgress           int    `json:"inProgress"`
	PendingReview        int    `json:"pendingReview"`
	NeedsAttention       int    `json:"needsAttention"`
	ScheduledInspections int    `json:"scheduledInspections"`
	GeneratedAt          string `json:"generated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreatePermit creates a permit.
func (c *Client) CreatePermit(ctx context.Context, projectAddress, customerName, municipality string) (Permit, error) {
	body := map[string]any{
		"project_address": projectAddress,
		"customer_name":   customerName,
		"municipality":    municipality,
	}
	var resp Permit
	err := c.do(ctx, http.MethodPost, "v0/permits", body, &resp)
	return resp, err
}

// GetPermit fetches a permit by id.
func (c *Client) GetPermit(ctx context.Context, id string) (Permit, error) {
	var resp Permit
	err := c.do(ctx, http.MethodGet, "v0/permits/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListPermits lists permits, optionally filtered by status.
func (c *Client) ListPermits(ctx context.Context, status string) ([]Permit, error) {
	endpoint := "v0/permits"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Permit
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TransitionStatus moves a permit to a new status.
func (c *Client) TransitionStatus(ctx context.Context, id, status, notes string) (Permit, error) {
	body := map[string]any{"status": status, "notes": notes}
	var resp Permit
	err := c.do(ctx, http.MethodPost, "v0/permits/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// DeletePermit removes a permit and its nested records.
func (c *Client) DeletePermit(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/permits/"+url.PathEscape(id), nil, nil)
}

// AddInspection attaches an inspection to a permit.
func (c *Client) AddInspection(ctx context.Context, permitID, inspType string) (Inspection, error) {
	body := map[string]any{"type": inspType}
	var resp Inspection
	endpoint := "v0/permits/" + url.PathEscape(permitID) + "/inspections"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateInspection patches an inspection with the given fields.
func (c *Client) UpdateInspection(ctx context.Context, permitID, inspectionID string, fields map[string]any) (Inspection, error) {
	var resp Inspection
	endpoint := "v0/permits/" + url.PathEscape(permitID) + "/inspections/" + url.PathEscape(inspectionID)
	err := c.do(ctx, http.MethodPatch, endpoint, fields, &resp)
	return resp, err
}

// ListMunicipalities returns the reference registry.
func (c *Client) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	var resp []Municipality
	err := c.do(ctx, http.MethodGet, "v0/municipalities", nil, &resp)
	return resp, err
}

// Stats returns the dashboard counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v0/stats", nil, &resp)
	return resp, err
}

// ExportCSV returns the raw CSV export.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/v0/export/permits.csv", nil)
	if err != nil {
		return nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
