package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Request is one HTTP exchange against the API, relative to its base URL.
type Request struct {
	Method string
	Path   string
	Header map[string]string
	Body   []byte
}

// Response is the raw HTTP result.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs requests. Implementations return an error only when no
// HTTP response was obtained.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// AgentTransport sends requests over the network with fiber's HTTP client.
type AgentTransport struct {
	BaseURL string
	Timeout time.Duration
}

// NewAgentTransport constructs a network transport.
func NewAgentTransport(baseURL string, timeout time.Duration) *AgentTransport {
	return &AgentTransport{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout}
}

// Do implements Transport.
func (t *AgentTransport) Do(ctx context.Context, r Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(r.Method)
	req.SetRequestURI(t.BaseURL + r.Path)
	for k, v := range r.Header {
		a.Set(k, v)
	}
	if len(r.Body) > 0 {
		a.Body(r.Body)
	}
	if timeout := t.timeout(ctx); timeout > 0 {
		a.Timeout(timeout)
	}

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return Response{}, err
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return Response{}, errors.Join(errs...)
	}
	return Response{Status: code, Body: body}, nil
}

// timeout is the configured timeout, shortened to the context deadline.
func (t *AgentTransport) timeout(ctx context.Context) time.Duration {
	timeout := t.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	return timeout
}

// AppTransport dispatches requests to an in-process fiber application.
type AppTransport struct {
	App    *fiber.App
	Prefix string
}

// NewAppTransport wraps app; prefix is prepended to every path (e.g. "/api").
func NewAppTransport(app *fiber.App, prefix string) *AppTransport {
	return &AppTransport{App: app, Prefix: strings.TrimRight(prefix, "/")}
}

// Do implements Transport.
func (t *AppTransport) Do(ctx context.Context, r Request) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, "http://intranet.local"+t.Prefix+r.Path, bytes.NewReader(r.Body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := t.App.Test(req, -1)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}
