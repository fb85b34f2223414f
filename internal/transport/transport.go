// Package transport implements the small HTTP/SSE client contract backing
// provider adapters with no official Go SDK (providers/cohere,
// providers/compat). No pack repo carries a generic HTTP/SSE client
// library — every adapter-bearing repo in the corpus relies on its own
// SDK's built-in transport — so this is deliberately stdlib-only.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request is one outbound HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// Response is a buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Part is one field of a multipart request body.
type Part struct {
	FieldName string
	FileName  string // empty for a plain form field
	Content   io.Reader
}

// ChunkStream is a pull-based source of raw SSE event payloads, with the
// leading "data: " prefix already stripped.
type ChunkStream interface {
	Next(ctx context.Context) (string, error) // io.EOF when the stream ends
	Close() error
}

// Client is the transport contract providers/cohere and providers/compat
// depend on (spec §6.3).
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
	SendMultipart(ctx context.Context, req Request, parts []Part) (*Response, error)
	SendStreaming(ctx context.Context, req Request) (ChunkStream, error)
}

// HTTPClient is the default Client, wrapping *http.Client.
type HTTPClient struct {
	Underlying *http.Client
}

// New builds an HTTPClient around http.DefaultClient.
func New() *HTTPClient {
	return &HTTPClient{Underlying: http.DefaultClient}
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.Underlying != nil {
		return c.Underlying
	}
	return http.DefaultClient
}

func (c *HTTPClient) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	httpReq.Header = req.Header

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *HTTPClient) SendMultipart(ctx context.Context, req Request, parts []Part) (*Response, error) {
	var buf bytes.Buffer
	boundary := "agentflow-boundary"
	for _, p := range parts {
		buf.WriteString("--" + boundary + "\r\n")
		if p.FileName != "" {
			buf.WriteString(fmt.Sprintf("Content-Disposition: form-data; name=%q; filename=%q\r\n\r\n", p.FieldName, p.FileName))
		} else {
			buf.WriteString(fmt.Sprintf("Content-Disposition: form-data; name=%q\r\n\r\n", p.FieldName))
		}
		if _, err := io.Copy(&buf, p.Content); err != nil {
			return nil, fmt.Errorf("transport: write multipart field %s: %w", p.FieldName, err)
		}
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + boundary + "--\r\n")

	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Body = &buf
	return c.Send(ctx, req)
}

func (c *HTTPClient) SendStreaming(ctx context.Context, req Request) (ChunkStream, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: build streaming request: %w", err)
	}
	httpReq.Header = req.Header

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: do streaming request: %w", err)
	}
	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// sseStream scans a `data: <payload>` SSE body line by line. Comment lines
// and blank keep-alive lines are skipped; a "[DONE]" payload ends the stream
// with io.EOF.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *sseStream) Next(ctx context.Context) (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			return "", io.EOF
		}
		return payload, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("transport: scan sse stream: %w", err)
	}
	return "", io.EOF
}

func (s *sseStream) Close() error { return s.body.Close() }
