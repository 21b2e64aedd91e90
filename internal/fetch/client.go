package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TransportError covers everything that can go wrong between "request sent"
// and "usable body": connection failures, timeouts and non-2xx responses.
// Status is zero when no response was received.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is the single outbound HTTP capability of the harvester. It makes
// exactly one request per Fetch call; retry policy belongs to callers.
type Client struct {
	client    *http.Client
	limiter   *rate.Limiter
	sizeCap   int64
	userAgent string
}

func NewClient(timeout, dialTimeout time.Duration, sizeCap int64, rps float64, userAgent string) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter:   limiter,
		sizeCap:   sizeCap,
		userAgent: userAgent,
	}
}

// Fetch retrieves rawURL and returns the (possibly gzip-decoded, size-capped)
// body together with the Content-Type header. Any transport failure or
// non-2xx status comes back as a *TransportError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, "", &TransportError{URL: rawURL, Err: fmt.Errorf("invalid url")}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", &TransportError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", &TransportError{URL: rawURL, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, "", &TransportError{URL: rawURL, Err: err}
		}
		body = gz
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	// some servers omit Content-Type entirely; only reject a declared non-HTML type
	if mediaType != "" && !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") {
		resp.Body.Close()
		return nil, "", &TransportError{URL: rawURL, Err: fmt.Errorf("non-html content %q", mediaType)}
	}

	return readCloser{Reader: io.LimitReader(body, c.sizeCap), body: resp.Body}, contentType, nil
}

// readCloser caps reads but still closes the network body underneath any
// gzip wrapper.
type readCloser struct {
	io.Reader
	body io.Closer
}

func (rc readCloser) Close() error { return rc.body.Close() }
