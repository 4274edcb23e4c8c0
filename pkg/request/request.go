// Package request models an outbound HTTP/1.1 request and serializes it to
// the exact wire bytes the engine writes to the transport.
package request

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/constants"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Request is an immutable bundle describing one wire exchange.
type Request struct {
	Scheme      string
	Host        string
	Port        int
	IsDomain    bool
	Target      string
	Method      string
	HTTPVersion string
	Headers     []string // each "Name: value", no trailing CRLF
	Body        []byte
}

// Authority returns the "host:port" string used for resolution and dialing.
func (r *Request) Authority() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// BaseURL reconstructs the absolute URL this request was built from, used to
// resolve a relative Location header against during redirect handling.
func (r *Request) BaseURL() (*url.URL, error) {
	return url.Parse(r.Scheme + "://" + r.Authority() + r.Target)
}

// ToBytes serializes the request per §4.1: request line, caller headers,
// Host (if domain), Connection: close, then Content-Length + body or a bare
// terminating CRLF.
func (r *Request) ToBytes() []byte {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.Target)
	b.WriteByte(' ')
	b.WriteString(r.HTTPVersion)
	b.WriteString("\r\n")

	for _, h := range r.Headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}

	if r.IsDomain {
		b.WriteString("Host: ")
		b.WriteString(r.Host)
		b.WriteString("\r\n")
	}

	b.WriteString("Connection: close\r\n")

	if len(r.Body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n\r\n")
		return append([]byte(b.String()), r.Body...)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Builder accumulates request parameters before Build validates them into a
// Request.
type Builder struct {
	rawURL      string
	method      string
	httpVersion string
	userAgent   string
	headers     []string
	body        []byte
}

// NewBuilder starts a Builder for the given URL with spec defaults: method
// GET, HTTP/1.1, and the default User-Agent.
func NewBuilder(rawURL string) *Builder {
	return &Builder{
		rawURL:      rawURL,
		method:      "GET",
		httpVersion: "HTTP/1.1",
		userAgent:   constants.UserAgent(),
	}
}

func (b *Builder) SetMethod(method string) *Builder {
	if method != "" {
		b.method = strings.ToUpper(method)
	}
	return b
}

func (b *Builder) SetHTTPVersion(version string) *Builder {
	if version != "" {
		b.httpVersion = version
	}
	return b
}

func (b *Builder) SetUserAgent(ua string) *Builder {
	if ua != "" {
		b.userAgent = ua
	}
	return b
}

// AddHeader appends a raw "Name: value" header line.
func (b *Builder) AddHeader(line string) *Builder {
	b.headers = append(b.headers, line)
	return b
}

func (b *Builder) AddHeaders(lines []string) *Builder {
	b.headers = append(b.headers, lines...)
	return b
}

func (b *Builder) SetBody(body []byte) *Builder {
	b.body = body
	return b
}

func (b *Builder) SetBodyString(body string) *Builder {
	b.body = []byte(body)
	return b
}

// Build validates accumulated state and produces a Request.
func (b *Builder) Build() (*Request, error) {
	u, err := url.Parse(b.rawURL)
	if err != nil {
		return nil, cerrors.URLParse(b.rawURL, err)
	}
	if u.Opaque != "" || u.Host == "" {
		return nil, cerrors.OpaqueURL(b.rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, cerrors.Scheme(u.Scheme)
	}

	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = defaultPorts[u.Scheme]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, cerrors.OpaqueURL(fmt.Sprintf("%s: no resolvable port", b.rawURL))
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	for _, h := range b.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || !httpguts.ValidHeaderFieldName(strings.TrimSpace(name)) || !httpguts.ValidHeaderFieldValue(strings.TrimSpace(value)) {
			return nil, cerrors.HTTPResponseParse(fmt.Sprintf("invalid header line: %q", h))
		}
	}

	headers := append(append([]string{}, b.headers...), "User-Agent: "+b.userAgent)

	return &Request{
		Scheme:      u.Scheme,
		Host:        host,
		Port:        port,
		IsDomain:    net.ParseIP(host) == nil,
		Target:      target,
		Method:      b.method,
		HTTPVersion: b.httpVersion,
		Headers:     headers,
		Body:        b.body,
	}, nil
}
