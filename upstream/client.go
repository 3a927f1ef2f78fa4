package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is a raw upstream CouchDB response, preserved byte-for-byte
// (headers aside) so it can be relayed back to the gateway's own caller
// without re-encoding.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client forwards requests to a real CouchDB instance, preserving
// method, query string, body and headers exactly as read-through and
// read-only fall-through require.
type Client struct {
	resty   *resty.Client
	baseURL string
}

// NewClient builds a Client targeting baseURL, optionally authenticating
// with HTTP basic auth when username/password are non-empty.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout)
	if username != "" && password != "" {
		rc.SetBasicAuth(username, password)
	}
	return &Client{resty: rc, baseURL: baseURL}
}

// hopByHop lists header names that must never be copied into a relayed
// response; matched case-insensitively.
var hopByHop = map[string]struct{}{
	"transfer-encoding": {},
}

// Forward issues method against path (with the given query string and
// body) on the upstream CouchDB and returns its raw response, with
// hop-by-hop headers stripped and the read-through marker header added.
func (c *Client) Forward(ctx context.Context, method, path string, query url.Values, body []byte, headers http.Header) (*Response, error) {
	req := c.resty.R().SetContext(ctx)

	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	for name, values := range headers {
		for _, v := range values {
			req.SetHeaderVerbatim(name, v)
		}
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Header:     http.Header{},
	}
	for name, values := range resp.Header() {
		if _, skip := hopByHop[strings.ToLower(name)]; skip {
			continue
		}
		for _, v := range values {
			out.Header.Add(name, v)
		}
	}
	out.Header.Set("X-Fake-CouchDb-Read-Through", "true")

	return out, nil
}
