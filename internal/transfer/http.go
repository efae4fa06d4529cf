package transfer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "current-logger"

// HTTPSender posts payloads to the collector with a hand-framed HTTP/1.1
// request on a fresh TCP connection, one request per connection.
type HTTPSender struct {
	Addr      string        // collector host:port
	UserAgent string        // User-Agent header
	Timeout   time.Duration // bounds dial plus the whole round trip; 0 disables
}

// NewHTTPSender creates a sender for collector, which may be "host:port" or
// an http URL.
func NewHTTPSender(collector, userAgent string, timeout time.Duration) (*HTTPSender, error) {
	addr, err := CollectorAddr(collector)
	if err != nil {
		return nil, err
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPSender{Addr: addr, UserAgent: userAgent, Timeout: timeout}, nil
}

// CollectorAddr normalises a collector setting to host:port.
func CollectorAddr(collector string) (string, error) {
	c := strings.TrimSpace(collector)
	if c == "" {
		return "", fmt.Errorf("collector address is empty")
	}
	if strings.Contains(c, "://") {
		u, err := url.Parse(c)
		if err != nil {
			return "", fmt.Errorf("parse collector %q: %w", collector, err)
		}
		if u.Scheme != "http" {
			return "", fmt.Errorf("collector %q: unsupported scheme %q", collector, u.Scheme)
		}
		c = u.Host
	}
	if _, _, err := net.SplitHostPort(c); err != nil {
		c = net.JoinHostPort(c, "80")
	}
	return c, nil
}

// StatusError reports a non-2xx response from the collector.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector responded %d %s", e.Code, http.StatusText(e.Code))
}

// FormatRequest frames payload as a POST request.
func FormatRequest(host, userAgent string, body []byte) []byte {
	var b strings.Builder
	b.Grow(160 + len(body))
	b.WriteString("POST / HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("Accept: */*\r\n")
	b.WriteString("User-Agent: " + userAgent + "\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	b.WriteString("\r\n")
	b.Write(body)
	return []byte(b.String())
}

// Send delivers payload and reads one response, then closes the connection.
func (h *HTTPSender) Send(ctx context.Context, payload []byte) error {
	d := net.Dialer{Timeout: h.Timeout}
	conn, err := d.DialContext(ctx, "tcp", h.Addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", h.Addr, err)
	}
	defer conn.Close()

	if h.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(h.Timeout)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	if _, err := conn.Write(FormatRequest(h.Addr, h.UserAgent, payload)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
