package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/pkg/httpx"
)

// ChatTurn is one prior exchange forwarded to the engine so follow-up
// questions stay grounded in the conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryResult is the engine's answer plus the raw response payload. The raw
// map is kept because citation payloads vary by engine version and are
// normalized downstream, not here.
type QueryResult struct {
	Answer     string
	Confidence float64
	Raw        map[string]any
}

// DocumentStatus is the engine-side processing state of one uploaded file.
type DocumentStatus struct {
	Status    string
	PageCount int
	Error     string
}

// Client is the retrieval-engine API client used by the rest of the backend.
type Client interface {
	TestConnection(ctx context.Context) error
	UploadDocument(ctx context.Context, filename string, data []byte) (engineDocID string, err error)
	GetDocumentStatus(ctx context.Context, engineDocID string) (DocumentStatus, error)
	DeleteDocument(ctx context.Context, engineDocID string) error
	Query(ctx context.Context, question string, engineDocIDs []string, history []ChatTurn) (QueryResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("RAGFLOW_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:9380"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	apiKey := strings.TrimSpace(os.Getenv("RAGFLOW_API_KEY"))

	timeoutSec := 120
	if v := os.Getenv("RAGFLOW_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("RAGFLOW_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "RAGFlowClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type ragflowHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ragflowHTTPError) Error() string {
	return fmt.Sprintf("ragflow http %d: %s", e.StatusCode, e.Body)
}

func (e *ragflowHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, contentType string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &ragflowHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, contentType string, body []byte, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, contentType, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("ragflow decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("RAGFlow request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var raw []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = encoded
	}
	return c.do(ctx, method, path, "application/json", raw, out)
}

// -------------------- Health --------------------

func (c *client) TestConnection(ctx context.Context) error {
	return c.doJSON(ctx, "GET", "/api/v1/health", nil, nil)
}

// -------------------- Documents --------------------

type uploadResponse struct {
	Data struct {
		DocumentID string `json:"document_id"`
	} `json:"data"`
	DocumentID string `json:"document_id"`
}

func (c *client) UploadDocument(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := c.do(ctx, "POST", "/api/v1/documents", writer.FormDataContentType(), buf.Bytes(), &resp); err != nil {
		return "", err
	}

	id := resp.Data.DocumentID
	if id == "" {
		id = resp.DocumentID
	}
	if id == "" {
		return "", fmt.Errorf("ragflow upload response missing document_id")
	}
	return id, nil
}

type statusResponse struct {
	Data struct {
		Status    string `json:"status"`
		PageCount int    `json:"page_count"`
		Error     string `json:"error"`
	} `json:"data"`
	Status    string `json:"status"`
	PageCount int    `json:"page_count"`
}

func (c *client) GetDocumentStatus(ctx context.Context, engineDocID string) (DocumentStatus, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, "GET", "/api/v1/documents/"+engineDocID+"/status", nil, &resp); err != nil {
		return DocumentStatus{}, err
	}

	out := DocumentStatus{
		Status:    resp.Data.Status,
		PageCount: resp.Data.PageCount,
		Error:     resp.Data.Error,
	}
	if out.Status == "" {
		out.Status = resp.Status
	}
	if out.PageCount == 0 {
		out.PageCount = resp.PageCount
	}
	return out, nil
}

func (c *client) DeleteDocument(ctx context.Context, engineDocID string) error {
	return c.doJSON(ctx, "DELETE", "/api/v1/documents/"+engineDocID, nil, nil)
}

// -------------------- Query --------------------

type queryRequest struct {
	Question    string     `json:"question"`
	DocumentIDs []string   `json:"document_ids,omitempty"`
	History     []ChatTurn `json:"history,omitempty"`
}

func (c *client) Query(ctx context.Context, question string, engineDocIDs []string, history []ChatTurn) (QueryResult, error) {
	req := queryRequest{
		Question:    question,
		DocumentIDs: engineDocIDs,
		History:     history,
	}

	var raw map[string]any
	if err := c.doJSON(ctx, "POST", "/api/v1/query", req, &raw); err != nil {
		return QueryResult{}, err
	}

	out := QueryResult{Raw: raw}
	if data, ok := raw["data"].(map[string]any); ok {
		// Some engine versions nest the payload under "data".
		out.Raw = data
	}
	if s, ok := out.Raw["answer"].(string); ok {
		out.Answer = s
	}
	if f, ok := out.Raw["confidence"].(float64); ok {
		out.Confidence = f
	}
	return out, nil
}
