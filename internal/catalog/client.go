// Package catalog talks to the Marmot catalog REST API. It implements the
// asset and lineage repositories on top of it.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	basePath       = "/api/v1"
	apiKeyHeader   = "X-API-Key"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

var errEmptyHost = errors.New("catalog host is empty")

type Config struct {
	Host   string
	APIKey string
	// Timeout bounds a single HTTP call.
	Timeout time.Duration
}

type Client struct {
	scheme  string
	host    string
	timeout time.Duration
	http    *http.Client
	rt      *httptransport.Runtime
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	scheme, host := SplitHost(cfg.Host)
	if host == "" {
		return nil, errEmptyHost
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		scheme:  scheme,
		host:    host,
		timeout: timeout,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rt = httptransport.NewWithClient(host, basePath, []string{scheme}, c.http)
	if cfg.APIKey != "" {
		c.rt.DefaultAuthentication = httptransport.APIKeyAuth(apiKeyHeader, "header", cfg.APIKey)
	}
	return c, nil
}

// SplitHost strips an http:// or https:// prefix from host and returns the
// scheme it implies. Hosts without a prefix use https.
func SplitHost(host string) (scheme, rest string) {
	host = strings.TrimSpace(host)
	switch {
	case strings.HasPrefix(host, "http://"):
		return "http", strings.TrimSuffix(strings.TrimPrefix(host, "http://"), "/")
	case strings.HasPrefix(host, "https://"):
		return "https", strings.TrimSuffix(strings.TrimPrefix(host, "https://"), "/")
	}
	return "https", strings.TrimSuffix(host, "/")
}

// BaseURL returns the API root every request is resolved against.
func (c *Client) BaseURL() string {
	return c.scheme + "://" + c.host + basePath
}

// operation is one catalog call. Path is a pattern such as /assets/{id}
// whose placeholders are filled from Params.
type operation struct {
	ID     string
	Method string
	Path   string
	Params map[string]string
	Query  url.Values
	Body   interface{}
}

func (op operation) url(base string) string {
	p := op.Path
	for k, v := range op.Params {
		p = strings.ReplaceAll(p, "{"+k+"}", url.PathEscape(v))
	}
	if len(op.Query) > 0 {
		p += "?" + op.Query.Encode()
	}
	return base + p
}

// do submits op and decodes a 2xx JSON body into out. Any other status is
// turned into a *StatusError.
func (c *Client) do(ctx context.Context, op operation, out interface{}) error {
	endpoint := op.url(c.BaseURL())

	writer := runtime.ClientRequestWriterFunc(func(req runtime.ClientRequest, _ strfmt.Registry) error {
		if err := req.SetTimeout(c.timeout); err != nil {
			return err
		}
		for k, v := range op.Params {
			if err := req.SetPathParam(k, v); err != nil {
				return err
			}
		}
		for k, vs := range op.Query {
			if err := req.SetQueryParam(k, vs...); err != nil {
				return err
			}
		}
		if op.Body != nil {
			return req.SetBodyParam(op.Body)
		}
		return nil
	})

	reader := runtime.ClientResponseReaderFunc(func(resp runtime.ClientResponse, consumer runtime.Consumer) (interface{}, error) {
		if resp.Code() < 200 || resp.Code() > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body(), maxErrorBody))
			return nil, &StatusError{
				Method:  op.Method,
				URL:     endpoint,
				Code:    resp.Code(),
				Message: errorMessage(b),
			}
		}
		if out == nil || resp.Code() == http.StatusNoContent {
			return nil, nil
		}
		if err := consumer.Consume(resp.Body(), out); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return out, nil
	})

	_, err := c.rt.Submit(&runtime.ClientOperation{
		ID:                 op.ID,
		Method:             op.Method,
		PathPattern:        op.Path,
		ProducesMediaTypes: []string{runtime.JSONMime},
		ConsumesMediaTypes: []string{runtime.JSONMime},
		Schemes:            []string{c.scheme},
		Params:             writer,
		Reader:             reader,
		Context:            ctx,
		Client:             c.http,
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return err
		}
		return transportError(ctx, op.Method, endpoint, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
