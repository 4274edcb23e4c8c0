// Package resolver resolves a "host:port" authority to a single socket
// address, honoring an address-family filter, a DNS timeout, and a
// caller-supplied override map that bypasses the network resolver entirely.
package resolver

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/idna"

	cerrors "github.com/mardiros/cabot/pkg/errors"
)

// Overrides is a finite mapping from a literal "host:port" authority to a
// resolved socket address. Its presence for a given authority bypasses DNS.
type Overrides map[string]net.Addr

// Resolver resolves authorities to socket addresses.
type Resolver struct {
	netResolver *net.Resolver
}

// New returns a Resolver using the standard library's default resolver.
func New() *Resolver {
	return &Resolver{netResolver: net.DefaultResolver}
}

// GetAddr resolves authority ("host:port") to one socket address, filtering
// by address family. If overrides contains authority, that value is returned
// without consulting DNS.
func (r *Resolver) GetAddr(ctx context.Context, authority string, overrides Overrides, ipv4, ipv6 bool, dnsTimeoutMS int) (net.Addr, error) {
	if addr, ok := overrides[authority]; ok {
		return addr, nil
	}

	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return nil, cerrors.DNSLookup("Host does not exists", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, cerrors.DNSLookup("Host does not exists", err)
	}

	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, cerrors.HostnameParse(host)
	}

	lookupCtx := ctx
	var cancel context.CancelFunc
	if dnsTimeoutMS > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, time.Duration(dnsTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	ipAddrs, err := r.netResolver.LookupIPAddr(lookupCtx, asciiHost)
	if err != nil {
		if deadlineExceeded(lookupCtx) {
			return nil, cerrors.DNSLookup("Timeout", err)
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, cerrors.DNSLookup("Host does not exists", err)
		}
		return nil, cerrors.DNSLookup(err.Error(), nil)
	}
	if len(ipAddrs) == 0 {
		return nil, cerrors.DNSLookup("Host does not exists", nil)
	}

	for _, ip := range ipAddrs {
		is4 := ip.IP.To4() != nil
		if is4 && !ipv4 {
			continue
		}
		if !is4 && !ipv6 {
			continue
		}
		return &net.TCPAddr{IP: ip.IP, Port: port}, nil
	}
	return nil, cerrors.DNSLookup("No IP found for this host", nil)
}

func deadlineExceeded(ctx context.Context) bool {
	return ctx.Err() == context.DeadlineExceeded
}
