// Package errors provides the unified error taxonomy used across cabot.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a cabot error. The set is flat and exhaustive: every error
// the library surfaces to a caller carries exactly one Kind.
type Kind string

const (
	KindURLParse            Kind = "url_parse"
	KindOpaqueURL           Kind = "opaque_url"
	KindScheme              Kind = "scheme"
	KindHostnameParse       Kind = "hostname_parse"
	KindDNSLookup           Kind = "dns_lookup"
	KindIO                  Kind = "io"
	KindCertificate         Kind = "certificate"
	KindEncoding            Kind = "encoding"
	KindHTTPResponseParse   Kind = "http_response_parse"
	KindMaxRedirectionLimit Kind = "max_redirection_attempt"
)

// Error is cabot's single error type. Every error returned across a package
// boundary is either one of these or wraps one, reachable via errors.As.
type Error struct {
	Kind      Kind
	Detail    string
	Cause     error
	Timestamp time.Time
}

func newErr(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause, Timestamp: time.Now()}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Constructors, one per Kind, matching §7 of the spec.

func URLParse(detail string, cause error) *Error {
	return newErr(KindURLParse, detail, cause)
}

func OpaqueURL(detail string) *Error {
	return newErr(KindOpaqueURL, detail, nil)
}

func Scheme(name string) *Error {
	return newErr(KindScheme, name, nil)
}

func HostnameParse(name string) *Error {
	return newErr(KindHostnameParse, name, nil)
}

func DNSLookup(detail string, cause error) *Error {
	return newErr(KindDNSLookup, detail, cause)
}

func IO(cause string, wrapped error) *Error {
	return newErr(KindIO, cause, wrapped)
}

func Certificate(cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return newErr(KindCertificate, detail, cause)
}

func Encoding(cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return newErr(KindEncoding, detail, cause)
}

func HTTPResponseParse(detail string) *Error {
	return newErr(KindHTTPResponseParse, detail, nil)
}

func MaxRedirectionAttempt(limit int) *Error {
	return newErr(KindMaxRedirectionLimit, fmt.Sprintf("%d", limit), nil)
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsTimeout reports whether err represents any flavor of deadline expiry:
// a cabot IO error wrapping a timeout, a DNS lookup timeout, a net.Error
// marked Timeout, or a bare context deadline.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Kind == KindIO && (e.Detail == "Connection Timeout" || e.Detail == "Read Timeout" || e.Detail == "Request Timeout"):
			return true
		case e.Kind == KindDNSLookup && e.Detail == "Timeout":
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsContextCanceled reports whether err is (or wraps) context.Canceled.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
