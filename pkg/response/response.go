// Package response models a parsed HTTP/1.1 response.
package response

import (
	"strconv"
	"strings"
	"unicode/utf8"

	cerrors "github.com/mardiros/cabot/pkg/errors"
)

// Response is the result handed back to a library caller.
type Response struct {
	HTTPVersion  string
	StatusCode   int
	ReasonPhrase string
	Headers      []string // each "Name: value", unfolded, no trailing CRLF
	Body         []byte
}

// BodyAsString decodes Body as UTF-8, surfacing Encoding on failure.
func (r *Response) BodyAsString() (string, error) {
	if r.Body == nil {
		return "", nil
	}
	if !utf8.Valid(r.Body) {
		return "", cerrors.Encoding(nil)
	}
	return string(r.Body), nil
}

// Header returns the value of the first header matching name
// case-insensitively, and whether it was found.
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Builder accumulates the parsed status line and header lines before Build
// validates them into a Response.
type Builder struct {
	statusLine string // the raw status line, e.g. "HTTP/1.1 200 OK"
	headers    []string
	body       []byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

// SetStatusLine records the raw status line, e.g. "HTTP/1.1 200 OK".
func (b *Builder) SetStatusLine(line string) *Builder {
	b.statusLine = line
	return b
}

func (b *Builder) AddHeader(line string) *Builder {
	b.headers = append(b.headers, line)
	return b
}

func (b *Builder) SetBody(body []byte) *Builder {
	b.body = body
	return b
}

// Build splits the recorded status line into version/code/reason and
// produces a Response. Mirrors the upstream splitn(3, " ") rule: the first
// token is the HTTP version, the second the numeric code, the remainder
// (rejoined) is the reason phrase.
func (b *Builder) Build() (*Response, error) {
	parts := strings.SplitN(strings.TrimRight(b.statusLine, "\r\n"), " ", 3)
	if len(parts) < 2 {
		return nil, cerrors.HTTPResponseParse("malformed status line: " + b.statusLine)
	}
	version := parts[0]
	if !strings.HasPrefix(version, "HTTP/") {
		return nil, cerrors.HTTPResponseParse("malformed http version: " + version)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 599 {
		return nil, cerrors.HTTPResponseParse("malformed status code: " + parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	var body []byte
	if len(b.body) > 0 {
		body = b.body
	}

	return &Response{
		HTTPVersion:  version,
		StatusCode:   code,
		ReasonPhrase: reason,
		Headers:      append([]string{}, b.headers...),
		Body:         body,
	}, nil
}
