// Package client implements the REST contract of the intranet API.
//
// A ResourceClient never mutates local state and never retries; callers own
// retry decisions. Transport failures surface as *errorutil.NetworkError and
// non-2xx responses as *errorutil.ServerError carrying the server's detail.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/observability"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

// Client is the entry point for all resource kinds.
type Client struct {
	transport Transport
	session   *Session
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-call debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records call counts and latency.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// New constructs a Client.
func New(transport Transport, session *Session, opts ...Option) *Client {
	c := &Client{transport: transport, session: session, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the caller's session.
func (c *Client) Session() *Session {
	return c.session
}

// Resource returns the client of one kind's collection.
func (c *Client) Resource(kind domain.Kind) (*ResourceClient, error) {
	schema, err := domain.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	return &ResourceClient{client: c, schema: schema}, nil
}

// ResourceClient talks to a single collection.
type ResourceClient struct {
	client *Client
	schema domain.Schema
}

// Kind of the collection.
func (r *ResourceClient) Kind() domain.Kind {
	return r.schema.Kind
}

// Schema of the collection.
func (r *ResourceClient) Schema() domain.Schema {
	return r.schema
}

// List fetches every resource in the collection.
func (r *ResourceClient) List(ctx context.Context) ([]domain.Resource, error) {
	var items []domain.Resource
	if err := r.call(ctx, "list", http.MethodGet, r.collectionPath(), nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Resource{}
	}
	return items, nil
}

// Get fetches one resource.
func (r *ResourceClient) Get(ctx context.Context, id int64) (domain.Resource, error) {
	var res domain.Resource
	err := r.call(ctx, "get", http.MethodGet, r.itemPath(id), nil, &res)
	return res, err
}

// Create submits a draft. The draft's ID is ignored; the server assigns one.
func (r *ResourceClient) Create(ctx context.Context, draft domain.Resource) (domain.Resource, error) {
	draft.ID = 0
	var res domain.Resource
	err := r.call(ctx, "create", http.MethodPost, r.collectionPath(), draft, &res)
	return res, err
}

// Update sends a partial set of fields.
func (r *ResourceClient) Update(ctx context.Context, id int64, partial domain.Fields) (domain.Resource, error) {
	var res domain.Resource
	err := r.call(ctx, "update", http.MethodPut, r.itemPath(id), partial, &res)
	return res, err
}

// Delete removes a resource.
func (r *ResourceClient) Delete(ctx context.Context, id int64) error {
	return r.call(ctx, "delete", http.MethodDelete, r.itemPath(id), nil, nil)
}

// Transition calls a named action route such as "status" or "assignment".
func (r *ResourceClient) Transition(ctx context.Context, id int64, action string, payload domain.Fields) (domain.Resource, error) {
	if payload == nil {
		payload = domain.Fields{}
	}
	var res domain.Resource
	err := r.call(ctx, "transition", http.MethodPut, r.itemPath(id)+"/"+action, payload, &res)
	return res, err
}

// UpdateStatus is the generic status transition.
func (r *ResourceClient) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Resource, error) {
	return r.Transition(ctx, id, "status", domain.Fields{"status": string(status)})
}

// History lists the audit entries of a resource, oldest first.
func (r *ResourceClient) History(ctx context.Context, id int64) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	if err := r.call(ctx, "history", http.MethodGet, r.itemPath(id)+"/history", nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// AppendHistory records an audit entry.
func (r *ResourceClient) AppendHistory(ctx context.Context, id int64, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	var out domain.HistoryEntry
	err := r.call(ctx, "append_history", http.MethodPost, r.itemPath(id)+"/history", entry, &out)
	return out, err
}

func (r *ResourceClient) collectionPath() string {
	return "/" + r.schema.Collection
}

func (r *ResourceClient) itemPath(id int64) string {
	return "/" + r.schema.Collection + "/" + strconv.FormatInt(id, 10)
}

func (r *ResourceClient) call(ctx context.Context, op, method, path string, in, out any) error {
	c := r.client
	opName := string(r.schema.Kind) + " " + op
	start := time.Now()

	req := Request{
		Method: method,
		Path:   path,
		Header: map[string]string{
			"Accept":                      "application/json",
			"Content-Type":                "application/json",
			observability.RequestIDHeader: uuid.NewString(),
		},
	}
	if c.session != nil {
		authz, err := c.session.Authorization()
		if err != nil {
			return err
		}
		req.Header["Authorization"] = authz
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", opName, err)
		}
		req.Body = body
	}

	resp, err := c.transport.Do(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordClientCall(string(r.schema.Kind), op, "network", elapsed)
		c.logger.Debug("api call failed",
			zap.String("op", opName),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", req.Header[observability.RequestIDHeader]),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return &apperrors.NetworkError{Op: opName, Err: err}
	}

	c.logger.Debug("api call",
		zap.String("op", opName),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.Status),
		zap.String("request_id", req.Header[observability.RequestIDHeader]),
		zap.Duration("latency", elapsed),
	)

	if resp.Status < 200 || resp.Status > 299 {
		c.metrics.RecordClientCall(string(r.schema.Kind), op, "server", elapsed)
		return &apperrors.ServerError{Status: resp.Status, Detail: detailOf(resp)}
	}
	c.metrics.RecordClientCall(string(r.schema.Kind), op, "ok", elapsed)

	if out == nil {
		return nil
	}
	if err := decodeData(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", opName, err)
	}
	return nil
}

// decodeData reads the {"data": ...} envelope, accepting a bare payload too.
func decodeData(body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return err
		}
		if data, ok := env["data"]; ok {
			if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
				return nil
			}
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(body, out)
}

// detailOf extracts the user-facing message of an error response.
func detailOf(resp Response) string {
	var env struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &env); err == nil {
		if len(env.Detail) > 0 {
			var s string
			if err := json.Unmarshal(env.Detail, &s); err == nil {
				if s != "" {
					return s
				}
			} else if !bytes.Equal(env.Detail, []byte("null")) {
				return string(env.Detail)
			}
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return http.StatusText(resp.Status)
}

// IsNotFound reports a 404 from the API.
func IsNotFound(err error) bool {
	var serverErr *apperrors.ServerError
	return errors.As(err, &serverErr) && serverErr.Status == http.StatusNotFound
}
