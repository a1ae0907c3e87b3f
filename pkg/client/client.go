package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIError is a structured error returned by the Fixline API. Reason carries
// the server's machine-readable reason code when one was provided.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("fixline: %s (%s, HTTP %d)", e.Message, e.Reason, e.Status)
	}
	return fmt.Sprintf("fixline: %s (HTTP %d)", e.Message, e.Status)
}

// ReasonOf extracts the API reason code from err, or "" when err is not an
// APIError.
func ReasonOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	return ""
}

// Report is the wire representation of a report record.
type Report struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Location       string    `json:"location"`
	ImageURL       string    `json:"image_url,omitempty"`
	Status         string    `json:"status"`
	Department     string    `json:"department,omitempty"`
	ReporterID     string    `json:"reporter_id"`
	ReporterName   string    `json:"reporter_name"`
	MaintainerID   string    `json:"maintainer_id,omitempty"`
	MaintainerName string    `json:"maintainer_name,omitempty"`
	FieldHeadID    string    `json:"field_head_id,omitempty"`
	FieldHeadName  string    `json:"field_head_name,omitempty"`
	ClosureImage   string    `json:"closure_image,omitempty"`
	ScreeningScore int       `json:"screening_score"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is the wire representation of an account.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// FieldHead is one entry in the assignment directory.
type FieldHead struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// ReportPage is one page of a report listing.
type ReportPage struct {
	Reports  []Report `json:"reports"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// DepartmentHistory is a department's listing plus its per-status counts.
type DepartmentHistory struct {
	Reports []Report       `json:"reports"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
}

// BulkResult summarises a bulk verify/reject operation.
type BulkResult struct {
	Count    int `json:"count"`
	Failures []struct {
		ReportID string `json:"report_id"`
		Reason   string `json:"reason"`
	} `json:"failures"`
}

// CreateReportRequest carries the fields for a new report submission.
// ImagePath optionally names a local evidence image to upload alongside.
type CreateReportRequest struct {
	Title       string
	Description string
	Category    string
	Location    string
	ImagePath   string
}

// ListOptions narrows a report listing. Zero values mean "no constraint".
type ListOptions struct {
	Statuses   []string
	Category   string
	Department string
	Search     string
	Sort       string
	Order      string
	Page       int
}

// Client is the Fixline SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed server.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 30 * time.Second,
		}
		return nil
	}
}

// New creates a new Fixline SDK Client connected to baseURL.
//
//	c, err := client.New("https://fixline.example.gov",
//	    client.WithBearerToken(token),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Token returns the session token currently attached to requests.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// ── Auth ─────────────────────────────────────────────────────────────────────

// Signup creates a new account and stores the returned session token on the
// client. Role may be empty, defaulting to reporter.
func (c *Client) Signup(ctx context.Context, email, password, name, role, department string) (*User, error) {
	payload := map[string]string{
		"email": email, "password": password, "name": name,
	}
	if role != "" {
		payload["role"] = role
	}
	if department != "" {
		payload["department"] = department
	}
	return c.authenticate(ctx, "/api/v1/auth/signup", payload)
}

// Login authenticates with email/password and stores the returned session
// token on the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, payload map[string]string) (*User, error) {
	body, err := c.doJSON(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return &resp.User, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/api/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}
	return &resp.User, nil
}

// ChangePassword updates the authenticated account's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"current_password": current,
		"new_password":     next,
	})
	return err
}

// ListFieldHeads returns the assignment directory, optionally narrowed to one
// department. Staff only.
func (c *Client) ListFieldHeads(ctx context.Context, department string) ([]FieldHead, error) {
	path := "/api/v1/users/field-heads"
	if department != "" {
		path += "?department=" + url.QueryEscape(department)
	}
	body, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		FieldHeads []FieldHead `json:"field_heads"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	return resp.FieldHeads, nil
}

// ── Reports ──────────────────────────────────────────────────────────────────

// CreateReport submits a new report, uploading the evidence image from
// req.ImagePath when set.
func (c *Client) CreateReport(ctx context.Context, req CreateReportRequest) (*Report, error) {
	fields := map[string]string{
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"location":    req.Location,
	}
	body, err := c.doMultipart(ctx, http.MethodPost, "/api/v1/reports", fields, "image", req.ImagePath)
	if err != nil {
		return nil, err
	}
	return decodeReport(body)
}

// GetReport fetches a single report by its UUID.
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+id, nil)
	if err != nil {
		return nil, err
	}
	return decodeReport(body)
}

// ListReports returns the filtered, paginated listing visible to the
// authenticated actor.
func (c *Client) ListReports(ctx context.Context, opts ListOptions) (*ReportPage, error) {
	q := url.Values{}
	if len(opts.Statuses) > 0 {
		q.Set("status", strings.Join(opts.Statuses, ","))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Department != "" {
		q.Set("department", opts.Department)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}

	path := "/api/v1/reports"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	body, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page ReportPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}
	return &page, nil
}

// ReporterReports lists the reports submitted by one reporter.
func (c *Client) ReporterReports(ctx context.Context, reporterID string, page int) (*ReportPage, error) {
	path := "/api/v1/users/" + reporterID + "/reports"
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}
	body, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var p ReportPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}
	return &p, nil
}

// VerifyReport moves a pending report to "verified" (binding it to
// department) or to "fake" (department must be empty). Staff only.
func (c *Client) VerifyReport(ctx context.Context, id, status, department string) (*Report, error) {
	payload := map[string]string{"status": status}
	if department != "" {
		payload["department"] = department
	}
	body, err := c.doJSON(ctx, http.MethodPut, "/api/v1/reports/"+id+"/verify", payload)
	if err != nil {
		return nil, err
	}
	return decodeReport(body)
}

// AssignReport assigns a verified report to a field head. Staff only.
func (c *Client) AssignReport(ctx context.Context, id, fieldHeadID string) (*Report, error) {
	body, err := c.doJSON(ctx, http.MethodPut, "/api/v1/reports/"+id+"/assign", map[string]string{
		"field_head_id": fieldHeadID,
	})
	if err != nil {
		return nil, err
	}
	return decodeReport(body)
}

// UpdateStatus requests a working transition (in_progress, resolved, closed).
// closureImagePath is required by the server when resolving.
func (c *Client) UpdateStatus(ctx context.Context, id, status, closureImagePath string) (*Report, error) {
	fields := map[string]string{"status": status}
	body, err := c.doMultipart(ctx, http.MethodPut, "/api/v1/reports/"+id+"/status", fields, "closure_image", closureImagePath)
	if err != nil {
		return nil, err
	}
	return decodeReport(body)
}

// DeleteReport permanently removes a fake report. Staff only.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/api/v1/reports/"+id, nil)
	return err
}

// ── Departments ──────────────────────────────────────────────────────────────

// History returns a department's reports plus per-status counts. An optional
// status narrows the listing without affecting the counts. Staff only.
func (c *Client) History(ctx context.Context, department, status string) (*DepartmentHistory, error) {
	path := "/api/v1/departments/" + department + "/history"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	body, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var h DepartmentHistory
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return &h, nil
}

// BulkVerify verifies every pending report in the department. Staff only.
func (c *Client) BulkVerify(ctx context.Context, department string) (*BulkResult, error) {
	return c.bulk(ctx, department, "bulk-verify")
}

// BulkReject marks every pending report in the department fake. Staff only.
func (c *Client) BulkReject(ctx context.Context, department string) (*BulkResult, error) {
	return c.bulk(ctx, department, "bulk-reject")
}

func (c *Client) bulk(ctx context.Context, department, op string) (*BulkResult, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/api/v1/departments/"+department+"/"+op, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result BulkResult `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	return &resp.Result, nil
}

// ── HTTP plumbing ────────────────────────────────────────────────────────────

func decodeReport(body []byte) (*Report, error) {
	var resp struct {
		Report Report `json:"report"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode report response: %w", err)
	}
	return &resp.Report, nil
}

// doJSON executes a request with an optional JSON payload and returns the
// response body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// doMultipart executes a request with multipart form fields and an optional
// file read from filePath under fileField.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, fileField, filePath string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %q: %w", k, err)
		}
	}
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", filePath, err)
		}
		defer f.Close()

		fw, err := mw.CreateFormFile(fileField, filepath.Base(filePath))
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(fw, f); err != nil {
			return nil, fmt.Errorf("copy %q: %w", filePath, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// do executes an HTTP request, attaching the Bearer token if present, and
// converts non-2xx responses into APIError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
			apiErr.Reason = parsed.Reason
		}
		return nil, apiErr
	}
	return body, nil
}
