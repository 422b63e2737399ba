// Package galaxy implements the backend.Client adapter for Galaxy-style
// workflow servers, which expose workflow invocation over a REST API.
package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend"
)

const apiKeyHeader = "x-api-key"

// Client talks to a single Galaxy server. It implements backend.Client.
type Client struct {
	destination string
	baseUrl     string
	apiKey      string
	httpClient  *http.Client
}

// New returns a Client for the Galaxy server at baseUrl. The destination name
// is stamped onto every handle the client issues, so that handles can never
// be replayed against a different destination.
func New(destination, baseUrl, apiKey string, requestTimeout time.Duration) *Client {
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}
	return &Client{
		destination: destination,
		baseUrl:     baseUrl,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

type invocationResponse struct {
	Id      string `json:"id"`
	State   string `json:"state"`
	Message string `json:"message"`
}

type metricsResponse struct {
	QueueSeconds   float64            `json:"queue_seconds"`
	RuntimeSeconds float64            `json:"runtime_seconds"`
	CpuSeconds     float64            `json:"cpu_seconds"`
	MaxMemoryBytes int64              `json:"max_memory_bytes"`
	Extra          map[string]float64 `json:"extra"`
}

func (c *Client) Submit(ctx context.Context, workflow string, params map[string]string) (backend.JobHandle, error) {
	body, err := json.Marshal(map[string]interface{}{"parameters": params})
	if err != nil {
		return backend.JobHandle{}, errors.WithStack(err)
	}
	url := fmt.Sprintf("%s/api/workflows/%s/invocations", c.baseUrl, workflow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backend.JobHandle{}, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return backend.JobHandle{}, errors.WithStack(&benchmarkerrors.ErrTransient{
			Op: "submit", Message: "request failed", Cause: err,
		})
	}
	defer res.Body.Close()

	if retryable(res.StatusCode) {
		return backend.JobHandle{}, errors.WithStack(&benchmarkerrors.ErrTransient{
			Op: "submit", Message: fmt.Sprintf("server returned %s", res.Status),
		})
	}
	if res.StatusCode != http.StatusOK {
		return backend.JobHandle{}, errors.WithStack(&benchmarkerrors.ErrSubmission{
			Workflow: workflow, Message: fmt.Sprintf("server returned %s: %s", res.Status, readBody(res.Body)),
		})
	}

	var invocation invocationResponse
	if err := json.NewDecoder(res.Body).Decode(&invocation); err != nil {
		return backend.JobHandle{}, errors.WithStack(&benchmarkerrors.ErrSubmission{
			Workflow: workflow, Message: fmt.Sprintf("malformed invocation response: %s", err),
		})
	}
	return backend.JobHandle{
		Id:          invocation.Id,
		Destination: c.destination,
		SubmittedAt: time.Now(),
	}, nil
}

func (c *Client) Poll(ctx context.Context, handle backend.JobHandle) (backend.Status, error) {
	url := fmt.Sprintf("%s/api/invocations/%s", c.baseUrl, handle.Id)
	res, err := c.get(ctx, url)
	if err != nil {
		return backend.Status{}, errors.WithStack(&benchmarkerrors.ErrTransient{
			Op: "poll", Message: "request failed", Cause: err,
		})
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return backend.Status{}, errors.WithStack(&benchmarkerrors.ErrTransient{
			Op: "poll", Message: fmt.Sprintf("server returned %s", res.Status),
		})
	}
	var invocation invocationResponse
	if err := json.NewDecoder(res.Body).Decode(&invocation); err != nil {
		return backend.Status{}, errors.WithStack(&benchmarkerrors.ErrTransient{
			Op: "poll", Message: fmt.Sprintf("malformed invocation response: %s", err),
		})
	}
	return statusFromInvocationState(invocation)
}

func (c *Client) Fetch(ctx context.Context, handle backend.JobHandle) (*backend.Metrics, error) {
	url := fmt.Sprintf("%s/api/invocations/%s/metrics", c.baseUrl, handle.Id)
	res, err := c.get(ctx, url)
	if err != nil {
		return nil, errors.WithStack(&benchmarkerrors.ErrFetch{
			JobId: handle.Id, Message: fmt.Sprintf("request failed: %s", err),
		})
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.WithStack(&benchmarkerrors.ErrFetch{
			JobId: handle.Id, Message: fmt.Sprintf("server returned %s", res.Status),
		})
	}
	var reported metricsResponse
	if err := json.NewDecoder(res.Body).Decode(&reported); err != nil {
		return nil, errors.WithStack(&benchmarkerrors.ErrFetch{
			JobId: handle.Id, Message: fmt.Sprintf("malformed metrics response: %s", err),
		})
	}
	return &backend.Metrics{
		QueueTime:      time.Duration(reported.QueueSeconds * float64(time.Second)),
		Runtime:        time.Duration(reported.RuntimeSeconds * float64(time.Second)),
		CpuSeconds:     reported.CpuSeconds,
		MaxMemoryBytes: reported.MaxMemoryBytes,
		Extra:          reported.Extra,
	}, nil
}

func (c *Client) Cancel(ctx context.Context, handle backend.JobHandle) error {
	url := fmt.Sprintf("%s/api/invocations/%s/cancel", c.baseUrl, handle.Id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithMessagef(err, "cancelling invocation %s", handle.Id)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("cancelling invocation %s: server returned %s", handle.Id, res.Status)
	}
	return nil
}

// Health verifies the instance is reachable and the api key is accepted.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.get(ctx, c.baseUrl+"/api/version")
	if err != nil {
		return errors.WithMessagef(err, "destination %s is unreachable", c.destination)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("destination %s health check failed: server returned %s", c.destination, res.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	return c.httpClient.Do(req)
}

func statusFromInvocationState(invocation invocationResponse) (backend.Status, error) {
	switch invocation.State {
	case "new", "ready", "queued":
		return backend.Status{State: backend.StateQueued}, nil
	case "scheduled", "running":
		return backend.Status{State: backend.StateRunning}, nil
	case "ok":
		return backend.Status{State: backend.StateSucceeded}, nil
	case "error", "failed":
		detail := invocation.Message
		if detail == "" {
			detail = "backend reported state " + invocation.State
		}
		return backend.Status{State: backend.StateFailed, Detail: detail}, nil
	case "cancelled":
		return backend.Status{State: backend.StateFailed, Detail: "cancelled by backend"}, nil
	}
	return backend.Status{}, errors.WithStack(&benchmarkerrors.ErrTransient{
		Op: "poll", Message: fmt.Sprintf("unknown invocation state %q", invocation.State),
	})
}

// retryable reports whether an HTTP status indicates a hiccup worth retrying.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return ""
	}
	return string(b)
}
