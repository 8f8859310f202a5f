// Package client talks to a bucketview server. It is the client half of the
// upload flow: it asks the server for a write capability, PUTs the bytes
// straight to the store and then reports completion so cached trees refresh.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/damacus/bucketview/internal/coordinator"
	"github.com/damacus/bucketview/internal/handlers"
	"github.com/damacus/bucketview/internal/models"
	"github.com/damacus/bucketview/internal/utils"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	base      *url.URL
	http      *http.Client
	token     string
	transport coordinator.Transport
}

var (
	_ coordinator.CapabilitySource   = (*Client)(nil)
	_ coordinator.CompletionNotifier = (*Client)(nil)
)

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient for both API and store calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.transport = coordinator.NewHTTPTransport(hc)
	}
}

// WithToken sends token to the server in the API token header
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}
	c := &Client{
		base:      base,
		http:      http.DefaultClient,
		transport: coordinator.NewHTTPTransport(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns the tree under prefix
func (c *Client) List(ctx context.Context, prefix string) (models.Tree, error) {
	var resp handlers.ObjectsResponse
	if err := c.call(ctx, http.MethodGet, "/objects", url.Values{"prefix": {prefix}}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return models.Tree{}, nil
	}
	return resp.Data, nil
}

// SignedURL returns a read capability for key
func (c *Client) SignedURL(ctx context.Context, key string) (models.Capability, error) {
	var capability models.Capability
	err := c.call(ctx, http.MethodGet, "/signed-url", url.Values{"key": {key}}, &capability)
	return capability, err
}

// UploadURL returns a write capability for key
func (c *Client) UploadURL(ctx context.Context, key string) (models.Capability, error) {
	var capability models.Capability
	err := c.call(ctx, http.MethodGet, "/upload-url", url.Values{"key": {key}}, &capability)
	return capability, err
}

// IssueWrite lets the client act as the capability source of an upload
func (c *Client) IssueWrite(ctx context.Context, key string) (models.Capability, error) {
	return c.UploadURL(ctx, key)
}

// CompleteUpload tells the server key was written
func (c *Client) CompleteUpload(ctx context.Context, key string) error {
	return c.call(ctx, http.MethodPost, "/upload-complete", url.Values{"key": {key}}, nil)
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.call(ctx, http.MethodDelete, "/delete-file", url.Values{"key": {key}}, nil)
}

// NewUpload prepares an upload of basename into folder. The caller runs it.
func (c *Client) NewUpload(folder, basename string) (*coordinator.Upload, error) {
	return coordinator.NewUpload(c, c.transport, c, folder, basename)
}

// Upload sends size bytes from body to folder/basename and returns the key
func (c *Client) Upload(ctx context.Context, folder, basename string, body io.Reader, size int64) (string, error) {
	u, err := c.NewUpload(folder, basename)
	if err != nil {
		return "", err
	}
	if err := u.Run(ctx, body, size); err != nil {
		return u.Key(), err
	}
	return u.Key(), nil
}

// Download copies key into w through a read capability. The store is
// contacted directly; the server never proxies object bytes.
func (c *Client) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	capability, err := c.SignedURL(ctx, key)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, capability.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, &coordinator.TransferError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(utils.HeaderAPIToken, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var parsed struct {
		handlers.ErrorResponse
		handlers.StatusResponse
	}
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != "":
			apiErr.Message = parsed.Error
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}
