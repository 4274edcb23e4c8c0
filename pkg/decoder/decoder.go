// Package decoder implements the HTTP/1.1 response decoder state machine:
// it reads bytes from a transport, parses the status line and headers,
// classifies the body framing, and streams body bytes to a sink, detecting
// redirects along the way.
package decoder

import (
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/constants"
)

// Sink is the caller-supplied receiver of decoded response bytes. The
// decoder calls WriteHeader exactly once, then WriteBody zero or more
// times in order, then Flush exactly once.
type Sink interface {
	WriteHeader(data []byte) error
	WriteBody(data []byte) error
	Flush() error
}

// Framing is the body-framing strategy selected while parsing headers.
type Framing int

const (
	FramingUnknown Framing = iota
	FramingContentLength
	FramingChunked
)

// RedirectKind tags a 3xx response the engine should follow, per §4.4.1.
type RedirectKind int

const (
	MovedPermanently   RedirectKind = 301
	Found              RedirectKind = 302
	SeeOther           RedirectKind = 303
	TemporaryRedirect  RedirectKind = 307
	PermanentRedirect  RedirectKind = 308
)

// PreservesMethodAndBody reports whether this redirect kind preserves the
// original request's method and body (307/308) versus downgrading to a
// bodiless GET (301/302/303).
func (k RedirectKind) PreservesMethodAndBody() bool {
	return k == TemporaryRedirect || k == PermanentRedirect
}

func redirectKindFor(statusCode int) (RedirectKind, bool) {
	switch statusCode {
	case 301:
		return MovedPermanently, true
	case 302:
		return Found, true
	case 303:
		return SeeOther, true
	case 307:
		return TemporaryRedirect, true
	case 308:
		return PermanentRedirect, true
	default:
		return 0, false
	}
}

// Redirect carries a detected 3xx Location, short-circuiting the decoder
// before the rest of the header block or any body is read.
type Redirect struct {
	Kind     RedirectKind
	Location string
}

// StatusLine holds the parsed first line of the response.
type StatusLine struct {
	HTTPVersion  string
	StatusCode   int
	ReasonPhrase string
}

// Decoder reads and decodes one response from conn.
type Decoder struct {
	conn          net.Conn
	readTimeoutMS int
	buf           []byte // unconsumed bytes already read from conn

	framing       Framing
	contentLength int64
}

// New returns a Decoder reading from conn, applying readTimeoutMS to every
// individual read syscall (0 disables the per-read deadline).
func New(conn net.Conn, readTimeoutMS int) *Decoder {
	return &Decoder{conn: conn, readTimeoutMS: readTimeoutMS}
}

func (d *Decoder) fill() error {
	if d.readTimeoutMS > 0 {
		if err := d.conn.SetReadDeadline(time.Now().Add(time.Duration(d.readTimeoutMS) * time.Millisecond)); err != nil {
			return cerrors.IO("setting read deadline", err)
		}
	} else {
		_ = d.conn.SetReadDeadline(time.Time{})
	}

	page := make([]byte, constants.BufferPageSize)
	n, err := d.conn.Read(page)
	if n > 0 {
		d.buf = append(d.buf, page[:n]...)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return cerrors.IO("Read Timeout", err)
		}
		return err // EOF or other I/O error, handled by callers
	}
	return nil
}

// readLine extracts one CRLF-or-LF-terminated line from the buffer,
// refilling from the transport as needed. The returned line includes its
// terminator.
func (d *Decoder) readLine() ([]byte, error) {
	for {
		if idx := indexLF(d.buf); idx >= 0 {
			line := d.buf[:idx+1]
			d.buf = d.buf[idx+1:]
			return line, nil
		}
		if len(d.buf) > constants.MaxHeaderBytes {
			return nil, cerrors.HTTPResponseParse("header line too long")
		}
		if err := d.fill(); err != nil {
			return nil, err
		}
	}
}

func indexLF(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}

func trimEOL(line []byte) string {
	return strings.TrimRight(string(line), "\r\n")
}

// ReadHeaders reads the status line and header block. It returns a non-nil
// Redirect if the response is a recognized 3xx with a Location header, in
// which case the header block has not been forwarded to the sink and the
// caller should abandon this connection. Otherwise it forwards the raw
// header block to sink.WriteHeader and records the selected framing for a
// subsequent StreamBody call.
func (d *Decoder) ReadHeaders(sink Sink) (*Redirect, error) {
	statusLineRaw, err := d.readLine()
	if err != nil {
		return nil, err
	}
	status, err := parseStatusLine(trimEOL(statusLineRaw))
	if err != nil {
		return nil, err
	}

	headerBlock := append([]byte{}, statusLineRaw...)
	framingDecided := false
	d.framing = FramingUnknown
	d.contentLength = 0

	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		headerBlock = append(headerBlock, line...)

		if trimEOL(line) == "" {
			break // bare CRLF ends the header block
		}

		name, value, ok := splitHeaderLine(trimEOL(line))
		if !ok {
			continue // obsolete-line-folding continuation; decoder dispatch ignores it
		}

		switch normalizeHeaderName(name) {
		case "TRANSFER_ENCODING":
			if framingDecided {
				continue
			}
			framingDecided = true
			if strings.EqualFold(strings.TrimSpace(value), "chunked") {
				d.framing = FramingChunked
			} else {
				d.framing = FramingUnknown
			}
		case "CONTENT_LENGTH":
			if framingDecided {
				continue
			}
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || n < 0 {
				return nil, cerrors.HTTPResponseParse("malformed Content-Length: " + value)
			}
			framingDecided = true
			d.framing = FramingContentLength
			d.contentLength = n
		case "LOCATION":
			if status.StatusCode/100 == 3 {
				if kind, ok := redirectKindFor(status.StatusCode); ok {
					return &Redirect{Kind: kind, Location: strings.TrimSpace(value)}, nil
				}
			}
		}
	}

	if err := sink.WriteHeader(headerBlock); err != nil {
		return nil, err
	}
	return nil, nil
}

func parseStatusLine(line string) (StatusLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return StatusLine{}, cerrors.HTTPResponseParse("malformed status line: " + line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return StatusLine{}, cerrors.HTTPResponseParse("malformed status code: " + parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return StatusLine{HTTPVersion: parts[0], StatusCode: code, ReasonPhrase: reason}, nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

func normalizeHeaderName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "_")
}

// StreamBody drives the body phase per the framing selected during
// ReadHeaders, forwarding body bytes to sink.WriteBody and calling
// sink.Flush exactly once on completion.
func (d *Decoder) StreamBody(sink Sink) error {
	var err error
	switch d.framing {
	case FramingContentLength:
		err = d.streamContentLength(sink)
	case FramingChunked:
		err = d.streamChunked(sink)
	default:
		err = d.streamUntilClose(sink)
	}
	if err != nil {
		return err
	}
	return sink.Flush()
}

func (d *Decoder) streamContentLength(sink Sink) error {
	remaining := d.contentLength

	if len(d.buf) > 0 {
		n := int64(len(d.buf))
		if n > remaining {
			n = remaining
		}
		if n > 0 {
			if err := sink.WriteBody(d.buf[:n]); err != nil {
				return err
			}
		}
		d.buf = d.buf[n:]
		remaining -= n
	}

	for remaining > 0 {
		if err := d.fill(); err != nil {
			return err
		}
		n := int64(len(d.buf))
		if n > remaining {
			n = remaining
		}
		if n > 0 {
			if err := sink.WriteBody(d.buf[:n]); err != nil {
				return err
			}
		}
		d.buf = d.buf[n:]
		remaining -= n
	}
	return nil
}

func (d *Decoder) streamUntilClose(sink Sink) error {
	if len(d.buf) > 0 {
		if err := sink.WriteBody(d.buf); err != nil {
			return err
		}
		d.buf = nil
	}
	for {
		err := d.fill()
		if len(d.buf) > 0 {
			if werr := sink.WriteBody(d.buf); werr != nil {
				return werr
			}
			d.buf = nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (d *Decoder) streamChunked(sink Sink) error {
	for {
		size, err := d.readChunkSize()
		if err != nil {
			return err
		}
		if size == 0 {
			if _, err := d.readLine(); err != nil { // trailer/empty line
				return err
			}
			return nil
		}

		remaining := size
		for remaining > 0 {
			if len(d.buf) == 0 {
				if err := d.fill(); err != nil {
					return err
				}
				continue
			}
			n := int64(len(d.buf))
			if n > remaining {
				n = remaining
			}
			if err := sink.WriteBody(d.buf[:n]); err != nil {
				return err
			}
			d.buf = d.buf[n:]
			remaining -= n
		}

		// consume the trailing CRLF after the chunk data
		if _, err := d.readLine(); err != nil {
			return err
		}
	}
}

func (d *Decoder) readChunkSize() (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}
	text := trimEOL(line)
	if idx := strings.IndexByte(text, ';'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	size, err := strconv.ParseInt(text, 16, 64)
	if err != nil || size < 0 {
		return 0, cerrors.HTTPResponseParse("malformed chunk size: " + text)
	}
	return size, nil
}
