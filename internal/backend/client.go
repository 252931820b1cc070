// Package backend is the HTTP client for the inspection backend: agent
// registration, risk matrix distribution, and event archive uploads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/structiq/fieldscan-agent/internal/riskmatrix"
)

// DefaultURL is used when no backend URL is configured.
const DefaultURL = "https://api.structiq.io"

// Client talks to one backend instance. A zero API key is valid for the
// registration endpoint only.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewWithKey builds a client for baseURL authenticated with apiKey.
func NewWithKey(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AgentInfo is the backend's view of this agent.
type AgentInfo struct {
	AgentKey    string  `json:"agent_key"`
	DisplayName string  `json:"display_name"`
	Status      string  `json:"status"`
	LastSeenAt  *string `json:"last_seen_at"`
}

// Ping validates the API key and returns the agent record.
func (c *Client) Ping(ctx context.Context) (*AgentInfo, error) {
	var info AgentInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/agents/me", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RegisterRequest creates a new agent entry on the backend.
type RegisterRequest struct {
	DisplayName string `json:"display_name"`
	ProjectCode string `json:"project_code"`
	Description string `json:"description"`
}

// RegisterResponse carries the issued credentials.
type RegisterResponse struct {
	APIKey   string `json:"api_key"`
	AgentKey string `json:"agent_key"`
}

// Register creates an agent entry and returns its credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/agents", req, &resp); err != nil {
		return nil, err
	}
	if resp.APIKey == "" {
		return nil, fmt.Errorf("backend returned no API key")
	}
	return &resp, nil
}

// RiskMatrix fetches the current risk matrix configuration.
func (c *Client) RiskMatrix(ctx context.Context) (*riskmatrix.Matrix, error) {
	var m riskmatrix.Matrix
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/risk-matrix", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// TicketRequest asks the backend to accept an event archive.
type TicketRequest struct {
	EventKey  string `json:"event_key"` // project:event-id
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// UploadTicket is the backend's go-ahead for one archive upload.
type UploadTicket struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
	ExpiresAt string `json:"expires_at"`
}

// CreateUploadTicket requests an upload ticket for an archive.
func (c *Client) CreateUploadTicket(ctx context.Context, req TicketRequest) (*UploadTicket, error) {
	var t UploadTicket
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/uploads/tickets", req, &t); err != nil {
		return nil, err
	}
	if t.ID == "" || t.UploadURL == "" {
		return nil, fmt.Errorf("backend returned an incomplete upload ticket")
	}
	return &t, nil
}

// UploadArchive streams the archive body to the ticket's upload URL.
func (c *Client) UploadArchive(ctx context.Context, ticket *UploadTicket, body io.Reader, size int64) error {
	url := ticket.UploadURL
	if strings.HasPrefix(url, "/") {
		url = c.baseURL + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/gzip")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("uploading archive: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// UploadState is the backend's processing status for one upload.
type UploadState struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // pending|processing|processed|failed
	RemoteID string `json:"remote_id"`
	Error    string `json:"error"`
}

// Done reports whether the backend has finished with the upload.
func (s *UploadState) Done() bool {
	return s.Status == "processed" || s.Status == "failed"
}

// UploadStatus polls the processing state of one upload ticket.
func (c *Client) UploadStatus(ctx context.Context, ticketID string) (*UploadState, error) {
	var st UploadState
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/uploads/"+ticketID, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("backend status %d: %s", resp.StatusCode, msg)
}
