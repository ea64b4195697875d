// Package registryclient reads the customer registry over its HTTP API.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// Client implements ports.CustomerDirectory against GET /api/customers.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
}

var _ ports.CustomerDirectory = (*Client)(nil)

// New returns a client for the registry at baseURL. A nil httpClient gets
// a default one.
func New(baseURL string, timeout time.Duration, httpClient *fasthttp.Client) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			Name:         "fieldnav-navigator",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// apiError mirrors the registry's error envelope.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListCustomers fetches the full registry snapshot.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	if err := c.get(ctx, "/api/customers", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Customer{}
	}
	return out, nil
}

// GetCustomer fetches one record; an unknown id yields a *domain.NotFoundError.
func (c *Client) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var out domain.Customer
	err := c.get(ctx, "/api/customers/"+strconv.FormatInt(id, 10), &out)
	if status, ok := statusOf(err); ok && status == fasthttp.StatusNotFound {
		return domain.Customer{}, &domain.NotFoundError{ID: id}
	}
	return out, err
}

type statusError struct {
	status int
	body   apiError
}

func (e *statusError) Error() string {
	if e.body.Message != "" {
		return fmt.Sprintf("registry returned %d %s: %s", e.status, e.body.Code, e.body.Message)
	}
	return fmt.Sprintf("registry returned %d", e.status)
}

func statusOf(err error) (int, bool) {
	se, ok := err.(*statusError)
	if !ok {
		return 0, false
	}
	return se.status, true
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		se := &statusError{status: resp.StatusCode()}
		_ = json.Unmarshal(resp.Body(), &se.body)
		return se
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
