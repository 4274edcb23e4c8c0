// Package tlsconfig provides small helpers for naming and reasoning about the
// TLS versions cabot's TLS transport adapter can negotiate.
package tlsconfig

import "crypto/tls"

// Supported versions. crypto/tls does not support SSLv2/SSLv3; the wire
// protocol note in the spec that "all standard versions are accepted if the
// underlying library permits" is honored by only ever offering what the
// standard library can actually negotiate.
const (
	VersionTLS10 uint16 = tls.VersionTLS10
	VersionTLS11 uint16 = tls.VersionTLS11
	VersionTLS12 uint16 = tls.VersionTLS12
	VersionTLS13 uint16 = tls.VersionTLS13
)

// GetVersionName returns a human-readable name for a negotiated TLS version,
// used in verbose/debug logging.
func GetVersionName(version uint16) string {
	switch version {
	case VersionTLS10:
		return "TLS 1.0"
	case VersionTLS11:
		return "TLS 1.1"
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}

// IsVersionDeprecated reports whether version is weaker than TLS 1.2.
func IsVersionDeprecated(version uint16) bool {
	return version < VersionTLS12
}
