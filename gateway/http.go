package gateway

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

// HTTPClient talks to the backend REST API with bearer-token auth.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a gateway client for the backend at baseURL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// errBody is the JSON error shape returned by the backend.
type errBody struct {
	Error string `json:"error"`
}

// classifyStatus maps an HTTP status to the store-level error taxonomy.
func classifyStatus(status int) ErrKind {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthenticated
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrTransient
	case status >= 500:
		return ErrTransient
	default:
		return ErrUnknown
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: ErrValidation, Msg: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Kind: ErrUnknown, Msg: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network-level failures are retryable from the store's perspective.
		return nil, &Error{Kind: ErrTransient, Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrTransient, Msg: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		msg := http.StatusText(resp.StatusCode)
		var eb errBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return nil, &Error{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Msg: msg}
	}
	return respBody, nil
}

// List implements Client.
func (c *HTTPClient) List(ctx context.Context, kind Kind, filters url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/"+string(kind), filters, nil)
}

// Create implements Client.
func (c *HTTPClient) Create(ctx context.Context, kind Kind, fields any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/"+string(kind), nil, fields)
}

// Update implements Client.
func (c *HTTPClient) Update(ctx context.Context, kind Kind, id string, fields any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, "/api/"+string(kind)+"/"+url.PathEscape(id), nil, fields)
}

// Delete implements Client.
func (c *HTTPClient) Delete(ctx context.Context, kind Kind, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/"+string(kind)+"/"+url.PathEscape(id), nil, nil)
	return err
}

// ListIntegrationEvents implements Client.
func (c *HTTPClient) ListIntegrationEvents(ctx context.Context, integrationID string, from, to time.Time) (json.RawMessage, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(time.RFC3339))
	}
	return c.do(ctx, http.MethodGet, "/api/integrations/"+url.PathEscape(integrationID)+"/events", q, nil)
}

// SyncIntegration implements Client.
func (c *HTTPClient) SyncIntegration(ctx context.Context, integrationID string, mode SyncMode) error {
	q := url.Values{"mode": []string{string(mode)}}
	_, err := c.do(ctx, http.MethodPost, "/api/integrations/"+url.PathEscape(integrationID)+"/sync", q, nil)
	return err
}
