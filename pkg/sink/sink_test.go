package sink

import (
	"bytes"
	"strings"
	"testing"
)

func TestLibrarySinkBuildsResponse(t *testing.T) {
	s := NewLibrarySink()
	header := "HTTP/1.1 200 Ok\r\nContent-Type: text/plain\r\nContent-Length: 12\r\n\r\n"
	if err := s.WriteHeader([]byte(header)); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := s.WriteBody([]byte("Hello World!")); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	resp, err := s.Response()
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != "Hello World!" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if v, ok := resp.Header("content-type"); !ok || v != "text/plain" {
		t.Fatalf("expected Content-Type header, got %q %v", v, ok)
	}
}

func TestLibrarySinkUnfoldsObsoleteLineFolding(t *testing.T) {
	s := NewLibrarySink()
	header := "HTTP/1.1 200 Ok\r\nX-Long: first\r\n second\r\nContent-Length: 0\r\n\r\n"
	if err := s.WriteHeader([]byte(header)); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	resp, err := s.Response()
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if v, ok := resp.Header("x-long"); !ok || v != "first second" {
		t.Fatalf("expected folded header to unfold to single value, got %q %v", v, ok)
	}
}

func TestCLISinkWritesHeadersAndBody(t *testing.T) {
	var headerBuf, bodyBuf bytes.Buffer
	s := NewCLISink(&headerBuf, &bodyBuf)

	if err := s.WriteHeader([]byte("HTTP/1.1 200 Ok\r\n\r\n")); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := s.WriteBody([]byte("payload")); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !strings.Contains(headerBuf.String(), "200 Ok") {
		t.Fatalf("expected header output, got %q", headerBuf.String())
	}
	if bodyBuf.String() != "payload" {
		t.Fatalf("expected body output, got %q", bodyBuf.String())
	}
}

func TestCLISinkSuppressesHeadersWhenNil(t *testing.T) {
	var bodyBuf bytes.Buffer
	s := NewCLISink(nil, &bodyBuf)
	if err := s.WriteHeader([]byte("HTTP/1.1 200 Ok\r\n\r\n")); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := s.WriteBody([]byte("x")); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	if bodyBuf.String() != "x" {
		t.Fatalf("expected body output regardless of header suppression, got %q", bodyBuf.String())
	}
}
