// API service for the remote library enrichment endpoints
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

var _ EnrichmentService = (*APIService)(nil)

// APIService talks to the remote library API over HTTP.
type APIService struct {
	baseURL string
	client  *resty.Client
}

// NewAPIService creates a new API service instance for the library API at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000/api/v1"
	}
	if client == nil {
		client = http.DefaultClient
	}

	rc := resty.NewWithClient(client).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryCondition)

	return &APIService{baseURL: baseURL, client: rc}
}

// NewHTTPClient returns an [http.Client] that sends token as a bearer token when it is set.
func NewHTTPClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	client := &http.Client{}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		client = oauth2.NewClient(ctx, src)
	}
	client.Timeout = timeout
	return client
}

// WithRetries sets how many times a failed GET request is retried.
func (a *APIService) WithRetries(n int) *APIService {
	a.client.SetRetryCount(n)
	return a
}

// BaseURL returns the API root requests are made against.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// retryCondition retries idempotent requests on network errors and server errors.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() >= http.StatusInternalServerError
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, data)
}

func (a *APIService) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	req := a.client.R().SetContext(ctx)
	if data != nil {
		req.SetBody(data)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header(),
		Body:       resp.Body(),
	}

	var jsonData any
	if err := json.Unmarshal(apiResp.Body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}
	return apiResp, nil
}

// ListTasks returns one page of tasks.
func (a *APIService) ListTasks(ctx context.Context, cursor string, limit int) (*models.TaskPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var page models.TaskPage
	if err := a.do(ctx, http.MethodGet, "/tasks", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProcessTasks asks the queue to advance up to limit tasks.
func (a *APIService) ProcessTasks(ctx context.Context, limit int) (*models.ProcessResult, error) {
	var result models.ProcessResult
	body := map[string]int{"limit": limit}
	if err := a.do(ctx, http.MethodPost, "/process", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveTask applies selections to a task.
func (a *APIService) ApproveTask(ctx context.Context, taskID string, selections []models.FieldSelection) (*models.Task, error) {
	if selections == nil {
		selections = []models.FieldSelection{}
	}
	body := map[string][]models.FieldSelection{"selections": selections}
	return a.taskAction(ctx, taskID, "approve", body)
}

// DismissTask marks a task as skipped.
func (a *APIService) DismissTask(ctx context.Context, taskID string) error {
	return a.do(ctx, http.MethodPost, taskPath(taskID, "dismiss"), nil, nil, nil)
}

// RetryTask moves a task back to pending.
func (a *APIService) RetryTask(ctx context.Context, taskID string) (*models.Task, error) {
	return a.taskAction(ctx, taskID, "retry", nil)
}

// RetryTaskNow runs a synchronous retry attempt.
func (a *APIService) RetryTaskNow(ctx context.Context, taskID string) (*models.Task, error) {
	return a.taskAction(ctx, taskID, "retry-now", nil)
}

// ListSources lists candidate sources for a work.
func (a *APIService) ListSources(ctx context.Context, workID string, q models.SourceQuery) (*models.SourcesResponse, error) {
	query := url.Values{}
	if len(q.Languages) > 0 {
		query.Set("languages", strings.Join(q.Languages, ","))
	}
	if q.Title != "" {
		query.Set("title", q.Title)
	}

	var sources models.SourcesResponse
	if err := a.do(ctx, http.MethodGet, workPath(workID, "sources"), query, nil, &sources); err != nil {
		return nil, err
	}
	return &sources, nil
}

// CompareSource compares a work against one source.
func (a *APIService) CompareSource(ctx context.Context, workID string, key models.CompareKey) (*models.CompareResponse, error) {
	query := url.Values{}
	query.Set("provider", key.Provider)
	query.Set("source_id", key.SourceID)
	if key.EditionID != "" {
		query.Set("edition_id", key.EditionID)
	}

	var compare models.CompareResponse
	if err := a.do(ctx, http.MethodGet, workPath(workID, "compare"), query, nil, &compare); err != nil {
		return nil, err
	}
	return &compare, nil
}

func (a *APIService) taskAction(ctx context.Context, taskID, action string, body any) (*models.Task, error) {
	var task models.Task
	path := taskPath(taskID, action)
	if err := a.do(ctx, http.MethodPost, path, nil, body, &task); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", shared.ErrDecodeResponse, path, err)
	}
	if task.ID != taskID {
		return nil, fmt.Errorf("%w: POST %s: got task %q", shared.ErrDecodeResponse, path, task.ID)
	}
	return &task, nil
}

// do performs a request and decodes a successful JSON body into out.
func (a *APIService) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req := a.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return transportError(method, path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrDecodeResponse, method, path, err)
	}
	return nil
}

func taskPath(taskID, action string) string {
	return fmt.Sprintf("/tasks/%s/%s", url.PathEscape(taskID), action)
}

func workPath(workID, resource string) string {
	return fmt.Sprintf("/works/%s/cover-metadata/%s", url.PathEscape(workID), resource)
}

// APIError is a failed call to the library API.
type APIError struct {
	StatusCode int    // 0 for transport failures
	Message    string // user-facing message
	cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", shared.ErrAPIRequest, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", shared.ErrAPIRequest, e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{shared.ErrAPIRequest, e.cause}
	}
	return []error{shared.ErrAPIRequest}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func transportError(method, path string, err error) error {
	msg := fmt.Sprintf("unable to reach library API (%s %s)", method, path)
	switch {
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	}
	return &APIError{Message: msg, cause: err}
}

func newAPIError(resp *resty.Response) error {
	msg := parseErrorMessage(resp.Body())
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	if msg == "" {
		msg = "unexpected response"
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

// parseErrorMessage extracts a message from {"detail"|"error"|"message": "..."} bodies.
func parseErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if s, ok := envelope.Detail.(string); ok && s != "" {
		return s
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}
