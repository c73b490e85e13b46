package ltp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ltpexport/internal/services"
)

const maxResponseBytes = 1 << 20

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues requests against one backend host.
type Client struct {
	host   string
	doer   HTTPDoer
	system string
}

// NewClient returns a client for host. system names the backend in errors.
func NewClient(system, host string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{host: strings.TrimRight(strings.TrimSpace(host), "/"), doer: doer, system: system}
}

// Host returns the backend host URL.
func (c *Client) Host() string { return c.host }

// Request describes one backend call.
type Request struct {
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
	Headers     map[string]string
}

// Response is a fully read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends req and reads the response. Network failures and non-2xx statuses
// are returned wrapped in services.ErrTransport.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.host+req.Path, req.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, c.system, method+" "+req.Path, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		httpReq.Header.Set(k, v)
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, c.system, method+" "+req.Path, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, c.system, method+" "+req.Path, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, services.Wrap(services.ErrTransport, c.system, method+" "+req.Path,
			fmt.Sprintf("returned %d: %s", resp.StatusCode, snippet), nil)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// JSON sends in (when non-nil) as a JSON body and decodes the response into out.
func (c *Client) JSON(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	req := Request{Method: method, Path: path, Headers: headers}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = bytes.NewReader(data)
		req.ContentType = "application/json"
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return services.Wrap(services.ErrTransport, c.system, method+" "+path, "decode response", err)
	}
	return nil
}
