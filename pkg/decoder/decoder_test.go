package decoder

import (
	"net"
	"testing"
	"time"
)

type recordingSink struct {
	header []byte
	body   []byte
	flushed bool
}

func (s *recordingSink) WriteHeader(data []byte) error {
	s.header = append([]byte{}, data...)
	return nil
}

func (s *recordingSink) WriteBody(data []byte) error {
	s.body = append(s.body, data...)
	return nil
}

func (s *recordingSink) Flush() error {
	s.flushed = true
	return nil
}

func serveAndDecode(t *testing.T, raw string) (*Decoder, *recordingSink) {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		_, _ = server.Write([]byte(raw))
		server.Close()
	}()
	d := New(client, 0)
	sink := &recordingSink{}
	t.Cleanup(func() { client.Close() })
	return d, sink
}

func TestContentLengthFraming(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	d, sink := serveAndDecode(t, raw)

	redirect, err := d.ReadHeaders(sink)
	if err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if redirect != nil {
		t.Fatalf("unexpected redirect: %+v", redirect)
	}
	if d.framing != FramingContentLength || d.contentLength != 5 {
		t.Fatalf("expected content-length framing of 5, got %v %d", d.framing, d.contentLength)
	}

	if err := d.StreamBody(sink); err != nil {
		t.Fatalf("StreamBody: %v", err)
	}
	if string(sink.body) != "hello" || !sink.flushed {
		t.Fatalf("unexpected body %q flushed=%v", sink.body, sink.flushed)
	}
}

func TestChunkedFraming(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	d, sink := serveAndDecode(t, raw)

	if _, err := d.ReadHeaders(sink); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if d.framing != FramingChunked {
		t.Fatalf("expected chunked framing, got %v", d.framing)
	}
	if err := d.StreamBody(sink); err != nil {
		t.Fatalf("StreamBody: %v", err)
	}
	if string(sink.body) != "Wikipedia" {
		t.Fatalf("expected dechunked body, got %q", sink.body)
	}
}

func TestReadUntilCloseFraming(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n\r\nno-length-body"
	d, sink := serveAndDecode(t, raw)

	if _, err := d.ReadHeaders(sink); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if d.framing != FramingUnknown {
		t.Fatalf("expected unknown/read-until-close framing, got %v", d.framing)
	}
	if err := d.StreamBody(sink); err != nil {
		t.Fatalf("StreamBody: %v", err)
	}
	if string(sink.body) != "no-length-body" {
		t.Fatalf("unexpected body: %q", sink.body)
	}
}

func TestRedirectShortCircuits(t *testing.T) {
	raw := "HTTP/1.1 301 Moved Permanently\r\nLocation: http://example.org/new\r\nContent-Length: 0\r\n\r\n"
	d, sink := serveAndDecode(t, raw)

	redirect, err := d.ReadHeaders(sink)
	if err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if redirect == nil || redirect.Kind != MovedPermanently || redirect.Location != "http://example.org/new" {
		t.Fatalf("expected 301 redirect, got %+v", redirect)
	}
	if sink.header != nil {
		t.Fatalf("expected header block not forwarded on redirect short-circuit")
	}
}

func TestObsoleteLineFoldingIgnoredByDecoderDispatch(t *testing.T) {
	// A folded continuation line must not be mistaken for a new header by
	// the decoder's own Transfer-Encoding/Content-Length/Location dispatch.
	raw := "HTTP/1.1 200 OK\r\nX-Long: first\r\n continued\r\nContent-Length: 2\r\n\r\nhi"
	d, sink := serveAndDecode(t, raw)

	if _, err := d.ReadHeaders(sink); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if d.framing != FramingContentLength || d.contentLength != 2 {
		t.Fatalf("expected content-length 2 despite folded line, got %v %d", d.framing, d.contentLength)
	}
}

func TestReadTimeoutSurfaces(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	d := New(client, 20)
	sink := &recordingSink{}
	done := make(chan error, 1)
	go func() {
		_, err := d.ReadHeaders(sink)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected a timeout error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("decoder did not return after read timeout")
	}
}
