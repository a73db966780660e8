// Package client is a small HTTP client for the aviary catalog server.
//
//	c := client.New(client.WithBaseURL("http://localhost:8080"))
//	providers, err := c.Providers(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range providers {
//	    fmt.Printf("%s (%d models)\n", p.Name, len(p.Models))
//	}
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/casualjim/aviary/catalog"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// DefaultMaxBodyBytes bounds how much of a response body is read.
const DefaultMaxBodyBytes int64 = 16 << 20

const maxMessageBytes = 200

var (
	// ErrNotFound is returned when the requested provider or model does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned for any unexpected HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Is makes a 404 StatusError match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client queries the catalog server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxBodyBytes int64
}

var (
	// WithBaseURL sets the server base URL, for example http://localhost:8080.
	WithBaseURL = opts.ForName[Client, string]("baseURL")

	// WithHTTPClient sets the underlying HTTP client.
	WithHTTPClient = opts.ForName[Client, *http.Client]("httpClient")

	// WithMaxBodyBytes sets the largest response body the client reads.
	WithMaxBodyBytes = opts.ForName[Client, int64]("maxBodyBytes")
)

// New creates a client.
func New(options ...opts.Option[Client]) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Providers returns every provider in the catalog.
func (c *Client) Providers(ctx context.Context) ([]catalog.Provider, error) {
	var providers []catalog.Provider
	if err := c.getJSON(ctx, "/providers", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// Provider returns one provider. It returns an error matching ErrNotFound
// when the server does not know the id.
func (c *Client) Provider(ctx context.Context, id string) (catalog.Provider, error) {
	var provider catalog.Provider
	if err := c.getJSON(ctx, "/providers/"+url.PathEscape(id), &provider); err != nil {
		return catalog.Provider{}, err
	}
	return provider, nil
}

// Model returns one model of a provider.
func (c *Client) Model(ctx context.Context, providerID, modelID string) (catalog.Model, error) {
	var model catalog.Model
	path := "/providers/" + url.PathEscape(providerID) + "/models/" + url.PathEscape(modelID)
	if err := c.getJSON(ctx, path, &model); err != nil {
		return catalog.Model{}, err
	}
	return model, nil
}

// Healthy reports whether the server answers its health check. Transport
// failures are returned as errors, a non-200 answer as false.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return fmt.Errorf("reading %s: %w (limit %d bytes)", path, ErrBodyTooLarge, c.maxBodyBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if e := gjson.GetBytes(body, "error"); e.Type == gjson.String && e.Str != "" {
			return e.Str
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxMessageBytes)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
