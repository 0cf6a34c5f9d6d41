package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"catalog-backend/dtos"

	"github.com/google/uuid"
)

// JobStatusSource yields the current projection of an import job. The HTTP
// Client polls for it; a push based source can replace it.
type JobStatusSource interface {
	FetchJob(ctx context.Context, id uuid.UUID) (*dtos.ImportJobResponse, error)
}

// JobController asks the server to change a job's status.
type JobController interface {
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// APIError is a non-2xx answer from the import API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("import api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the import API over HTTP with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) jobURL(id uuid.UUID) string {
	return c.BaseURL + "/api/admin/imports/" + id.String()
}

func (c *Client) FetchJob(ctx context.Context, id uuid.UUID) (*dtos.ImportJobResponse, error) {
	var job dtos.ImportJobResponse
	if err := c.do(ctx, http.MethodGet, c.jobURL(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	body := dtos.UpdateImportStatusRequest{Status: status}
	return c.do(ctx, http.MethodPatch, c.jobURL(id)+"/status", body, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
