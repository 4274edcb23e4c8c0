// Package constants defines default values shared across cabot.
package constants

import (
	"fmt"
	"runtime"
)

// Version is cabot's release version, reported in the default User-Agent.
const Version = "0.1.0"

// Default timeout budgets, in milliseconds, matching the CLI's default flag
// values. A caller overrides any of these on the Client before Execute.
const (
	DefaultDNSTimeoutMS     = 5_000
	DefaultConnectTimeoutMS = 15_000
	DefaultReadTimeoutMS    = 10_000
	DefaultRequestTimeoutMS = 0 // 0 disables the overall-request cap
)

// DefaultMaxRedirects bounds the number of redirects followed before the
// engine gives up with MaxRedirectionAttempt.
const DefaultMaxRedirects = 16

// BufferPageSize is the chunk size used when pulling bytes off the transport
// during the decoder's body phase.
const BufferPageSize = 2048

// MaxHeaderBytes bounds how many bytes the decoder buffers while looking for
// the end of a single line (status, header or chunk-size line) before it
// gives up with HttpResponseParse. The header block as a whole is not bounded.
const MaxHeaderBytes = 64 * 1024

// UserAgent returns the default User-Agent header value.
func UserAgent() string {
	return fmt.Sprintf("cabot/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
