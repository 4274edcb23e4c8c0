// Package sink provides the decoder.Sink implementations that receive
// decoded response bytes: a library sink that accumulates a response.Response
// in memory, and a CLI sink that streams headers and body straight to files
// the way the command-line tool does.
package sink

import (
	"fmt"
	"io"
	"strings"

	"fortio.org/log"

	"github.com/mardiros/cabot/pkg/buffer"
	"github.com/mardiros/cabot/pkg/response"
)

// LibrarySink accumulates the header block and body into a response.Response,
// unfolding obsolete line-folded headers the way the reference client's
// header splitter does.
type LibrarySink struct {
	builder *response.Builder
	body    *buffer.Buffer
}

func NewLibrarySink() *LibrarySink {
	return &LibrarySink{builder: response.NewBuilder(), body: buffer.New()}
}

// WriteHeader splits the raw header block into a status line and unfolded
// header lines, feeding them to the response builder.
func (s *LibrarySink) WriteHeader(data []byte) error {
	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}
	s.builder.SetStatusLine(strings.TrimRight(lines[0], "\r\n"))

	var folded strings.Builder
	flush := func() {
		clean := strings.TrimSpace(folded.String())
		if clean != "" {
			s.builder.AddHeader(clean)
		}
		folded.Reset()
	}
	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			log.Debugf("obsolete line folded header received: %q", line)
			folded.WriteByte(' ')
			folded.WriteString(strings.TrimSpace(line))
			continue
		}
		flush()
		folded.WriteString(strings.TrimSpace(line))
	}
	flush()
	return nil
}

func (s *LibrarySink) WriteBody(data []byte) error {
	_, err := s.body.Write(data)
	return err
}

func (s *LibrarySink) Flush() error {
	if log.LogDebug() {
		log.Debugf("response body: %q", s.body.Bytes())
	}
	s.builder.SetBody(s.body.Bytes())
	return nil
}

// Response returns the accumulated response. Call only after Flush.
func (s *LibrarySink) Response() (*response.Response, error) {
	return s.builder.Build()
}

// CLISink streams the header block to an optional header writer (e.g.
// stderr in verbose mode) and the body to an output writer (stdout or a
// file), the way the command-line tool does.
type CLISink struct {
	headerOut io.Writer // nil disables header output (non-verbose mode)
	bodyOut   io.Writer
}

// NewCLISink builds a CLISink. headerOut may be nil to suppress headers.
func NewCLISink(headerOut, bodyOut io.Writer) *CLISink {
	return &CLISink{headerOut: headerOut, bodyOut: bodyOut}
}

func (s *CLISink) WriteHeader(data []byte) error {
	if s.headerOut == nil {
		return nil
	}
	_, err := s.headerOut.Write(data)
	return err
}

func (s *CLISink) WriteBody(data []byte) error {
	_, err := s.bodyOut.Write(data)
	return err
}

func (s *CLISink) Flush() error {
	if f, ok := s.bodyOut.(interface{ Sync() error }); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("flushing output: %w", err)
		}
	}
	return nil
}
