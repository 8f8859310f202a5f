package coordinator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TransferError is a non-2xx answer from the capability URL
type TransferError struct {
	StatusCode int
	Body       string
}

func (e *TransferError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store answered %d", e.StatusCode)
	}
	return fmt.Sprintf("store answered %d: %s", e.StatusCode, e.Body)
}

// HTTPTransport PUTs bytes to a capability URL. A negative size sends the
// body chunked.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns a transport over client, or http.DefaultClient
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) Put(ctx context.Context, url string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	switch {
	case size == 0:
		req.Body = http.NoBody
		req.GetBody = nil
		req.ContentLength = 0
	case size > 0:
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransferError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
