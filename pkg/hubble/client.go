package hubble

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bft-labs/hubble/pkg/log"
)

const (
	batchEndpoint = "/batch"
	apiKeyHeader  = "x-api-key"
)

// Client posts batches to the collection API.
// A Client is safe for concurrent use once configured.
type Client struct {
	client  HTTPClient
	logger  log.Logger
	encoder *Encoder
}

// NewClient creates a Client sending through client. A nil logger discards
// all output.
func NewClient(client HTTPClient, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{
		client:  client,
		logger:  logger,
		encoder: NewEncoder(),
	}
}

// Encoder returns the encoder used for request bodies. Register extra
// transformers on it before the first call to Post.
func (c *Client) Encoder() *Encoder {
	return c.encoder
}

// BatchURL returns the batch endpoint for host, stripping one trailing slash.
// An empty host selects DefaultHost.
func BatchURL(host string) string {
	if host == "" {
		host = DefaultHost
	}
	return strings.TrimSuffix(host, "/") + batchEndpoint
}

// Post sends batch to the API, authenticated with writeKey.
//
// On status 200 the response is returned as received; the caller must close
// its body, which also releases the request deadline. Any other status yields
// an *APIError. Transport and encoding failures are returned wrapped. Post
// makes exactly one attempt.
func (c *Client) Post(ctx context.Context, writeKey string, batch Batch, opts ...PostOption) (*http.Response, error) {
	o := defaultPostOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if batch == nil {
		batch = Batch{}
	}
	url := BatchURL(o.host)

	data, err := c.encoder.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	c.logger.Debug("making request", log.String("payload", string(data)))

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", UserAgent)
	header.Set(apiKeyHeader, writeKey)

	body := data
	if o.gzip {
		header.Set("Content-Encoding", "gzip")
		if body, err = gzipBytes(data); err != nil {
			return nil, fmt.Errorf("compress batch: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = header

	fields := []log.Field{
		log.String("method", req.Method),
		log.String("url", url),
		log.Any("headers", maskHeaders(header)),
		log.Duration("timeout", o.timeout),
	}
	c.logger.Debug("posting request", append(fields, bodyFields(data, body, o.gzip)...)...)

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		c.logger.Debug("data uploaded successfully", log.String("url", url))
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	defer cancel()
	defer resp.Body.Close()
	return nil, c.apiError(resp)
}

// apiError builds the error for a non-200 response. The body is used as the
// message whenever it is not a JSON object carrying both code and message.
func (c *Client) apiError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response (status %d): %w", resp.StatusCode, err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err == nil {
		c.logger.Debug("received response",
			log.Int("status", resp.StatusCode),
			log.String("payload", string(raw)),
		)
		code, hasCode := payload["code"]
		message, hasMessage := payload["message"]
		if hasCode && hasMessage {
			return &APIError{
				Status:  resp.StatusCode,
				Code:    jsonText(code),
				Message: jsonText(message),
			}
		}
	}

	return &APIError{
		Status:  resp.StatusCode,
		Code:    UnknownCode,
		Message: string(raw),
	}
}

// jsonText returns a JSON string's value, or the raw JSON of anything else.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maskHeaders(h http.Header) http.Header {
	masked := h.Clone()
	if masked.Get(apiKeyHeader) != "" {
		masked.Set(apiKeyHeader, "*****")
	}
	return masked
}

// bodyFields describes the request body. A compressed body is logged as its
// size next to the JSON it was built from.
func bodyFields(payload, body []byte, compressed bool) []log.Field {
	if compressed {
		return []log.Field{
			log.String("body", string(payload)),
			log.Int("body_bytes", len(body)),
		}
	}
	return []log.Field{log.String("body", string(body))}
}

// cancelOnClose releases the request context once the caller is done with
// the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
