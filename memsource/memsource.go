// Package memsource is a client for the Memsource TMS REST API.
//
// It covers the round trip the toolkit needs: log in, find a project and
// its jobs, download a job's bilingual MXLIFF file, upload it again and
// run pre-translation. Every call takes a context; the session token is
// sent as the "token" query parameter.
package memsource

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Memsource cloud web root.
const DefaultBaseURL = "https://cloud.memsource.com/web"

const pageSize = 50

var (
	// ErrUnauthorized matches API errors with status 401.
	ErrUnauthorized = errors.New("memsource: unauthorized")
	// ErrProjectNotFound is returned when no project has the requested
	// internal id.
	ErrProjectNotFound = errors.New("memsource: project not found")
	// ErrNotLoggedIn is returned by calls made before Login or SetToken.
	ErrNotLoggedIn = errors.New("memsource: not logged in")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memsource: HTTP %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap maps 401 responses to ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// ---------------------------------------------------------------------------
// API types
// ---------------------------------------------------------------------------

// Project is a TMS project.
type Project struct {
	UID         string   `json:"uid"`
	InternalID  int      `json:"internalId"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	SourceLang  string   `json:"sourceLang"`
	TargetLangs []string `json:"targetLangs"`
}

// Job is one target-language job of a project.
type Job struct {
	UID        string `json:"uid"`
	InnerID    string `json:"innerId"`
	Status     string `json:"status"`
	TargetLang string `json:"targetLang"`
	Filename   string `json:"filename"`
}

// AsyncRequest tracks a long-running server operation. AsyncResponse is nil
// until the operation has finished.
type AsyncRequest struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	DateCreated   string         `json:"dateCreated"`
	AsyncResponse *AsyncResponse `json:"asyncResponse"`
}

// AsyncResponse is the outcome of a finished AsyncRequest.
type AsyncResponse struct {
	DateCreated string `json:"dateCreated"`
	ErrorCode   string `json:"errorCode"`
	ErrorDesc   string `json:"errorDesc"`
}

// PreTranslateOptions are sent with PreTranslate.
type PreTranslateOptions struct {
	UseTranslationMemory          bool
	UseMachineTranslation         bool
	Threshold                     float64
	PreTranslateNonTranslatables  bool
	ConfirmNonTranslatableMatches bool
	SegmentFilters                []string
}

// DefaultPreTranslateOptions returns TM-only pre-translation at 75%.
func DefaultPreTranslateOptions() PreTranslateOptions {
	return PreTranslateOptions{
		UseTranslationMemory:          true,
		Threshold:                     0.75,
		PreTranslateNonTranslatables:  true,
		ConfirmNonTranslatableMatches: true,
		SegmentFilters:                []string{"NOT_LOCKED"},
	}
}

type page[T any] struct {
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	PageNumber    int `json:"pageNumber"`
	Content       []T `json:"content"`
}

type uidRef struct {
	UID string `json:"uid"`
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Options configure a Client.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout bounds each request; zero means 60s.
	Timeout time.Duration
	// InsecureSkipVerify disables certificate checks for this client only.
	InsecureSkipVerify bool
}

// Client talks to one TMS instance. It is safe for concurrent use once
// logged in.
type Client struct {
	BaseURL string

	token string
	http  *resty.Client
}

// New creates a client. Call Login or SetToken before other calls.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	h := resty.New().SetTimeout(opts.Timeout)
	if opts.InsecureSkipVerify {
		h.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return &Client{BaseURL: strings.TrimRight(opts.BaseURL, "/"), http: h}
}

// SetToken sets the session token directly.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the session token.
func (c *Client) Token() string { return c.token }

func (c *Client) url(format string, args ...any) string {
	return c.BaseURL + fmt.Sprintf(format, args...)
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.token == "" {
		return nil, ErrNotLoggedIn
	}
	return c.http.R().SetContext(ctx).SetQueryParam("token", c.token), nil
}

func check(op string, r *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.IsError() {
		return fmt.Errorf("%s: %w", op, &APIError{StatusCode: r.StatusCode(), Body: r.String()})
	}
	return nil
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context, user, password string) (string, error) {
	var resp struct {
		Token   string `json:"token"`
		Expires string `json:"expires"`
	}
	r, err := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"userName": user, "password": password}).
		SetResult(&resp).
		Post(c.url("/api2/v1/auth/login"))
	if err := check("login", r, err); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	c.token = resp.Token
	return resp.Token, nil
}

func listAll[T any](ctx context.Context, c *Client, op, url string, params map[string]string) ([]T, error) {
	var all []T
	for n := 0; ; n++ {
		req, err := c.request(ctx)
		if err != nil {
			return nil, err
		}
		var p page[T]
		r, err := req.
			SetQueryParams(params).
			SetQueryParam("pageNumber", strconv.Itoa(n)).
			SetQueryParam("pageSize", strconv.Itoa(pageSize)).
			SetResult(&p).
			Get(url)
		if err := check(op, r, err); err != nil {
			return nil, err
		}
		all = append(all, p.Content...)
		if n+1 >= p.TotalPages || len(p.Content) == 0 {
			return all, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Projects and jobs
// ---------------------------------------------------------------------------

// ListProjects returns every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return listAll[Project](ctx, c, "list projects", c.url("/api2/v1/projects/"), nil)
}

// GetProject returns one project by uid.
func (c *Client) GetProject(ctx context.Context, uid string) (*Project, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var p Project
	r, err := req.SetResult(&p).Get(c.url("/api2/v1/projects/%s", uid))
	if err := check("get project "+uid, r, err); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectByInternalID finds the project whose numeric internal id matches.
func (c *Client) ProjectByInternalID(ctx context.Context, internalID int) (*Project, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].InternalID == internalID {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("internal id %d: %w", internalID, ErrProjectNotFound)
}

// ListJobs returns the jobs of a project at the given workflow level.
func (c *Client) ListJobs(ctx context.Context, projectUID string, workflowLevel int) ([]Job, error) {
	params := map[string]string{"workflowLevel": strconv.Itoa(workflowLevel)}
	return listAll[Job](ctx, c, "list jobs of "+projectUID, c.url("/api2/v2/projects/%s/jobs", projectUID), params)
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, projectUID, jobUID string) (*Job, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var j Job
	r, err := req.SetResult(&j).Get(c.url("/api2/v1/projects/%s/jobs/%s", projectUID, jobUID))
	if err := check("get job "+jobUID, r, err); err != nil {
		return nil, err
	}
	return &j, nil
}

// ---------------------------------------------------------------------------
// Bilingual files
// ---------------------------------------------------------------------------

// DownloadBilingualFile returns the MXLIFF bytes of a job.
func (c *Client) DownloadBilingualFile(ctx context.Context, projectUID, jobUID string) ([]byte, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	r, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(map[string][]uidRef{"jobs": {{UID: jobUID}}}).
		Post(c.url("/api2/v1/projects/%s/jobs/bilingualFile", projectUID))
	if err := check("download job "+jobUID, r, err); err != nil {
		return nil, err
	}
	return r.Body(), nil
}

// UploadBilingualFile uploads MXLIFF bytes and returns the updated jobs.
// Uploaded segments are not saved to the server's translation memory.
func (c *Client) UploadBilingualFile(ctx context.Context, data []byte) ([]Job, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Jobs []Job `json:"jobs"`
	}
	r, err := req.
		SetQueryParam("saveToTransMemory", "None").
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		SetResult(&resp).
		Put(c.url("/api2/v1/bilingualFiles"))
	if err := check("upload bilingual file", r, err); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// ---------------------------------------------------------------------------
// Pre-translation
// ---------------------------------------------------------------------------

// PreTranslate starts pre-translation of jobs and returns the id of the
// async request tracking it.
func (c *Client) PreTranslate(ctx context.Context, projectUID string, jobUIDs []string, opts PreTranslateOptions) (string, error) {
	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}
	jobs := make([]uidRef, len(jobUIDs))
	for i, uid := range jobUIDs {
		jobs[i] = uidRef{UID: uid}
	}
	body := map[string]any{
		"jobs":                             jobs,
		"useTranslationMemory":             opts.UseTranslationMemory,
		"useMachineTranslation":            opts.UseMachineTranslation,
		"translationMemoryTreshold":        opts.Threshold,
		"preTranslateNonTranslatables":     opts.PreTranslateNonTranslatables,
		"confirm100NonTranslatableMatches": opts.ConfirmNonTranslatableMatches,
		"segmentFilters":                   opts.SegmentFilters,
	}
	var resp struct {
		AsyncRequest AsyncRequest `json:"asyncRequest"`
	}
	r, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		Post(c.url("/api2/v1/projects/%s/jobs/preTranslate", projectUID))
	if err := check("pre-translate "+projectUID, r, err); err != nil {
		return "", err
	}
	if resp.AsyncRequest.ID == "" {
		return "", fmt.Errorf("pre-translate %s: no async request in response", projectUID)
	}
	return resp.AsyncRequest.ID, nil
}

// GetAsyncRequest returns the current state of an async request.
func (c *Client) GetAsyncRequest(ctx context.Context, id string) (*AsyncRequest, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var a AsyncRequest
	r, err := req.SetResult(&a).Get(c.url("/api2/v1/async/%s", id))
	if err := check("get async request "+id, r, err); err != nil {
		return nil, err
	}
	return &a, nil
}

// WaitAsyncRequest polls an async request every interval until it has a
// response or ctx is done. A response carrying an error code is returned
// together with an error.
func (c *Client) WaitAsyncRequest(ctx context.Context, id string, interval time.Duration) (*AsyncRequest, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("waiting for async request %s: polling interval must be positive, got %s", id, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a, err := c.GetAsyncRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if resp := a.AsyncResponse; resp != nil {
			if resp.ErrorCode != "" {
				return a, fmt.Errorf("async request %s failed: %s: %s", id, resp.ErrorCode, resp.ErrorDesc)
			}
			return a, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for async request %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
