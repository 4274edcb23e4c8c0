package request

import (
	"strings"
	"testing"

	cerrors "github.com/mardiros/cabot/pkg/errors"
)

func TestBuildSimpleGET(t *testing.T) {
	req, err := NewBuilder("http://example.org/path?x=1").Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" || req.Target != "/path?x=1" || !req.IsDomain {
		t.Fatalf("unexpected request: %+v", req)
	}

	raw := string(req.ToBytes())
	if !strings.HasPrefix(raw, "GET /path?x=1 HTTP/1.1\r\n") {
		t.Fatalf("unexpected request line: %q", raw)
	}
	if !strings.Contains(raw, "Host: example.org\r\n") {
		t.Fatalf("expected Host header: %q", raw)
	}
	if !strings.Contains(raw, "Connection: close\r\n") {
		t.Fatalf("expected Connection: close: %q", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\n") {
		t.Fatalf("expected request to end with bare CRLFCRLF: %q", raw)
	}
	if strings.Count(raw, "User-Agent:") != 1 {
		t.Fatalf("expected exactly one User-Agent header: %q", raw)
	}
}

func TestBuildLiteralIPHasNoHostHeader(t *testing.T) {
	req, err := NewBuilder("http://127.0.0.1:8080/").Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.IsDomain {
		t.Fatalf("literal IP host must not be flagged as domain")
	}
	if strings.Contains(string(req.ToBytes()), "Host:") {
		t.Fatalf("literal IP request must not include a Host header")
	}
}

func TestBuildWithBodySetsContentLength(t *testing.T) {
	req, err := NewBuilder("http://example.org/submit").
		SetMethod("post").
		SetBodyString("{}").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw := string(req.ToBytes())
	if !strings.Contains(raw, "Content-Length: 2\r\n\r\n{}") {
		t.Fatalf("expected Content-Length and body at end: %q", raw)
	}
	if req.Method != "POST" {
		t.Fatalf("expected method upcased to POST, got %q", req.Method)
	}
}

func TestBuildRejectsOpaqueURL(t *testing.T) {
	_, err := NewBuilder("mailto:nobody@example.org").Build()
	if !cerrors.Is(err, cerrors.KindOpaqueURL) {
		t.Fatalf("expected OpaqueURL error, got %v", err)
	}
}

func TestBuildRejectsBadScheme(t *testing.T) {
	_, err := NewBuilder("ftp://example.org/").Build()
	if !cerrors.Is(err, cerrors.KindScheme) {
		t.Fatalf("expected Scheme error, got %v", err)
	}
}

func TestBuildRejectsMalformedURL(t *testing.T) {
	_, err := NewBuilder("http://%zz").Build()
	if !cerrors.Is(err, cerrors.KindURLParse) {
		t.Fatalf("expected UrlParse error, got %v", err)
	}
}

func TestBuildRejectsInvalidHeaderLine(t *testing.T) {
	_, err := NewBuilder("http://example.org/").AddHeader("bad header no colon token: v").Build()
	// header name contains a space, which httpguts rejects as a token.
	if err == nil {
		t.Fatalf("expected invalid header line to fail validation")
	}
}
