// Package api provides the REST transport for entity resources served under /api.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/n1rna/invadmin/internal/codec"
	"github.com/n1rna/invadmin/internal/config"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/logger"
)

const mergePatchContentType = "application/merge-patch+json"

// Transport is the boundary the synchronization layer talks to. Bodies and results are
// wire records; resource is the collection path of an entity, e.g. "brands".
type Transport interface {
	Create(ctx context.Context, resource string, body entity.WireRecord) (entity.WireRecord, error)
	Update(ctx context.Context, resource string, id int64, body entity.WireRecord) (entity.WireRecord, error)
	PartialUpdate(ctx context.Context, resource string, id int64, body entity.WireRecord) (entity.WireRecord, error)
	Find(ctx context.Context, resource string, id int64) (entity.WireRecord, error)
	Query(ctx context.Context, resource string, params QueryParams) ([]entity.WireRecord, error)
	Delete(ctx context.Context, resource string, id int64) error
}

// Client is a resty-backed implementation of Transport.
type Client struct {
	httpClient *resty.Client
	log        *logger.Logger
}

var _ Transport = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithRetries enables transport-level retries for failed requests. Only idempotent
// methods are retried; a POST that timed out may already have created the entity.
func WithRetries(count int) Option {
	return func(c *Client) {
		c.httpClient.SetRetryCount(count)
	}
}

// retryIdempotent replaces resty's default retry condition.
func retryIdempotent(resp *resty.Response, err error) bool {
	if err == nil || resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}

// NewClient creates a new API client
func NewClient(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")+"/api").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		AddRetryCondition(retryIdempotent)
	if token != "" {
		restyClient.SetAuthToken(token)
	}

	c := &Client{
		httpClient: restyClient,
		log:        logger.GetLogger().Named("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	restyClient.SetLogger(c.log.Zap().Sugar())
	return c
}

// NewClientFromConfig creates a client from the loaded configuration
func NewClientFromConfig(cfg *config.Config, opts ...Option) *Client {
	opts = append([]Option{WithRetries(cfg.Retries)}, opts...)
	return NewClient(cfg.APIURL, cfg.APIToken, cfg.Timeout, opts...)
}

// Create posts a new entity; the body must not carry an identity.
func (c *Client) Create(ctx context.Context, resource string, body entity.WireRecord) (entity.WireRecord, error) {
	resp, err := c.request(ctx).SetBody(body).Post(collectionPath(resource))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	return c.parseRecord(resp)
}

// Update replaces an existing entity.
func (c *Client) Update(ctx context.Context, resource string, id int64, body entity.WireRecord) (entity.WireRecord, error) {
	resp, err := c.request(ctx).SetBody(body).Put(itemPath(resource, id))
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", resource, id, err)
	}
	return c.parseRecord(resp)
}

// PartialUpdate sends a merge patch; only the fields present in body change.
func (c *Client) PartialUpdate(ctx context.Context, resource string, id int64, body entity.WireRecord) (entity.WireRecord, error) {
	resp, err := c.request(ctx).
		SetHeader("Content-Type", mergePatchContentType).
		SetBody(body).
		Patch(itemPath(resource, id))
	if err != nil {
		return nil, fmt.Errorf("partial update %s %d: %w", resource, id, err)
	}
	return c.parseRecord(resp)
}

// Find retrieves a single entity by identity.
func (c *Client) Find(ctx context.Context, resource string, id int64) (entity.WireRecord, error) {
	resp, err := c.request(ctx).Get(itemPath(resource, id))
	if err != nil {
		return nil, fmt.Errorf("find %s %d: %w", resource, id, err)
	}
	return c.parseRecord(resp)
}

// Query retrieves one page of entities.
func (c *Client) Query(ctx context.Context, resource string, params QueryParams) ([]entity.WireRecord, error) {
	page, err := c.QueryPage(ctx, resource, params)
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// QueryPage retrieves one page of entities along with the total count reported by the
// backend in X-Total-Count (-1 when absent).
func (c *Client) QueryPage(ctx context.Context, resource string, params QueryParams) (*Page, error) {
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(params.Values()).
		Get(collectionPath(resource))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", resource, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}

	records, err := codec.DecodeWireList(resp.Body())
	if err != nil {
		return nil, err
	}

	total := int64(-1)
	if raw := resp.Header().Get("X-Total-Count"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			total = n
		}
	}

	return &Page{Records: records, Total: total}, nil
}

// Delete removes an entity.
func (c *Client) Delete(ctx context.Context, resource string, id int64) error {
	resp, err := c.request(ctx).Delete(itemPath(resource, id))
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", resource, id, err)
	}
	return c.checkResponse(resp)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.httpClient.R().SetContext(ctx)
}

// parseRecord parses a response carrying a single wire record
func (c *Client) parseRecord(resp *resty.Response) (entity.WireRecord, error) {
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}
	if len(resp.Body()) == 0 {
		return nil, nil
	}
	return codec.DecodeWire(resp.Body())
}

// checkResponse turns error statuses into *APIError
func (c *Client) checkResponse(resp *resty.Response) error {
	c.log.Debug("%s %s -> %d (%s)", resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time())

	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	return newAPIError(resp.StatusCode(), resp.Body())
}

func collectionPath(resource string) string {
	return "/" + strings.Trim(resource, "/")
}

func itemPath(resource string, id int64) string {
	return collectionPath(resource) + "/" + strconv.FormatInt(id, 10)
}
