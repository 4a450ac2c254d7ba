package handlers

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/gofiber/fiber/v2"
)

// hop-by-hop headers describe the upstream connection, not the response
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyRelay is a fiber handler that relays the request to the configured
// upstream and streams the upstream's response back. Exactly one upstream
// attempt is made per request.
func ProxyRelay(cfg *edgelib.Config) fiber.Handler {
	client := newUpstreamClient(cfg)
	upstream := cfg.Upstream

	return func(c *fiber.Ctx) error {
		req, err := newUpstreamRequest(c, upstream)
		if err != nil {
			return relayFailure(c, err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return relayFailure(c, err)
		}

		for _, h := range hopHeaders {
			resp.Header.Del(h)
		}
		// fasthttp always writes its own Date and drops any other value
		resp.Header.Del("Date")

		c.Status(resp.StatusCode)
		for key, values := range resp.Header {
			for _, value := range values {
				c.Response().Header.Add(key, value)
			}
		}

		// fasthttp closes resp.Body once it is drained or the client goes away,
		// which releases the upstream connection.
		size := -1
		if resp.ContentLength >= 0 {
			size = int(resp.ContentLength)
		}
		c.Context().SetBodyStream(resp.Body, size)
		return nil
	}
}

func newUpstreamClient(cfg *edgelib.Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.UpstreamTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			DisableKeepAlives:     !cfg.UpstreamKeepAlive,
			DisableCompression:    true,
			ResponseHeaderTimeout: cfg.UpstreamTimeout,
		},
		// redirects belong to the client, not to the relay
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// newUpstreamRequest copies method, raw path and query, every header and the
// body stream of the inbound request. Only Host is rewritten.
func newUpstreamRequest(c *fiber.Ctx, upstream string) (*http.Request, error) {
	body, size := requestBody(c)

	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), "http://"+upstream+"/", body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size

	// Opaque keeps the path exactly as the client sent it.
	rawPath, rawQuery, hasQuery := strings.Cut(c.OriginalURL(), "?")
	req.URL.Opaque = rawPath
	req.URL.RawQuery = rawQuery
	req.URL.ForceQuery = hasQuery && rawQuery == ""

	c.Request().Header.VisitAll(func(key, value []byte) {
		req.Header.Add(string(key), string(value))
	})
	if _, ok := req.Header["User-Agent"]; !ok {
		// suppress net/http's default User-Agent
		req.Header["User-Agent"] = nil
	}
	req.Header.Set("Host", upstream)
	req.Host = upstream

	return req, nil
}

// requestBody returns the inbound body as a stream and its length, -1 when
// the length is unknown (chunked uploads).
func requestBody(c *fiber.Ctx) (io.Reader, int64) {
	n := c.Request().Header.ContentLength()
	if n == 0 {
		return nil, 0
	}
	if stream := c.Context().RequestBodyStream(); stream != nil {
		if n < 0 {
			return stream, -1
		}
		return stream, int64(n)
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, 0
	}
	return bytes.NewReader(body), int64(len(body))
}

// relayFailure answers 502 with a JSON body for every request the upstream
// never responded to, including requests that could not be built at all.
func relayFailure(c *fiber.Ctx, err error) error {
	wrapped := edgelib.UpstreamUnreachable.Wrap(err, "proxy %s %s", c.Method(), c.OriginalURL())
	log.Printf("ERROR: %v", wrapped)
	return c.Status(edgelib.StatusOf(wrapped)).JSON(fiber.Map{
		"error":   "Proxy error",
		"message": failureMessage(err),
	})
}

// failureMessage drops the *url.Error prefix, which would print the opaque
// request URL rather than the upstream address.
func failureMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
