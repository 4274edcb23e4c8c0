// Package client implements the request engine described in §4.5: resolve,
// connect, optionally wrap TLS, write the request, drive the decoder, and
// follow redirects up to a configured limit. Client is the library's
// top-level, builder-configured entry point.
package client

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"

	"github.com/mardiros/cabot/pkg/constants"
	"github.com/mardiros/cabot/pkg/decoder"
	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/request"
	"github.com/mardiros/cabot/pkg/resolver"
	"github.com/mardiros/cabot/pkg/response"
	"github.com/mardiros/cabot/pkg/sink"
	"github.com/mardiros/cabot/pkg/tlsadapter"
	"github.com/mardiros/cabot/pkg/transport"
)

// Client orchestrates one or more wire exchanges for a single Execute call,
// following redirects per §4.5. It holds no state across calls other than
// its configuration: every Execute opens and closes its own socket(s).
type Client struct {
	resolver  *resolver.Resolver
	overrides resolver.Overrides

	ipv4, ipv6 bool

	dnsTimeoutMS     int
	connectTimeoutMS int
	readTimeoutMS    int
	requestTimeoutMS int
	maxRedirects     int

	tls tlsadapter.Config
}

// New returns a Client configured with the spec's default timeouts, both
// address families enabled, and no TLS customization.
func New() *Client {
	return &Client{
		resolver:         resolver.New(),
		overrides:        resolver.Overrides{},
		ipv4:             true,
		ipv6:             true,
		dnsTimeoutMS:     constants.DefaultDNSTimeoutMS,
		connectTimeoutMS: constants.DefaultConnectTimeoutMS,
		readTimeoutMS:    constants.DefaultReadTimeoutMS,
		requestTimeoutMS: constants.DefaultRequestTimeoutMS,
		maxRedirects:     constants.DefaultMaxRedirects,
	}
}

// WithDNSTimeout sets t_dns, in milliseconds.
func (c *Client) WithDNSTimeout(ms int) *Client { c.dnsTimeoutMS = ms; return c }

// WithConnectTimeout sets t_connect, in milliseconds.
func (c *Client) WithConnectTimeout(ms int) *Client { c.connectTimeoutMS = ms; return c }

// WithReadTimeout sets t_read, in milliseconds.
func (c *Client) WithReadTimeout(ms int) *Client { c.readTimeoutMS = ms; return c }

// WithRequestTimeout sets t_request, in milliseconds; 0 disables the
// overall-request cap.
func (c *Client) WithRequestTimeout(ms int) *Client { c.requestTimeoutMS = ms; return c }

// WithMaxRedirects sets the number of redirects followed before the engine
// gives up with MaxRedirectionAttempt.
func (c *Client) WithMaxRedirects(n int) *Client { c.maxRedirects = n; return c }

// WithAddressFamily restricts DNS resolution to the given families. Passing
// both false is equivalent to enabling both (per the CLI's own default rule).
func (c *Client) WithAddressFamily(ipv4, ipv6 bool) *Client {
	if !ipv4 && !ipv6 {
		ipv4, ipv6 = true, true
	}
	c.ipv4, c.ipv6 = ipv4, ipv6
	return c
}

// WithOverride registers a "host:port" authority that bypasses DNS entirely,
// resolving directly to addr.
func (c *Client) WithOverride(authority string, addr net.Addr) *Client {
	c.overrides[authority] = addr
	return c
}

// WithResolveOverride parses curl's "--resolve host:port:address" form and
// registers it the same way as WithOverride.
func (c *Client) WithResolveOverride(host, port, address string) *Client {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(address, port))
	if err != nil {
		log.Warnf("invalid --resolve override %s:%s:%s: %v", host, port, address, err)
		return c
	}
	return c.WithOverride(net.JoinHostPort(host, port), addr)
}

// WithInsecureTLS disables server certificate verification.
func (c *Client) WithInsecureTLS() *Client { c.tls.InsecureSkipVerify = true; return c }

// WithClientCertificate configures a PEM client certificate/key pair
// presented during the TLS handshake, for mTLS.
func (c *Client) WithClientCertificate(certPEM, keyPEM []byte) *Client {
	c.tls.ClientCertPEM = certPEM
	c.tls.ClientKeyPEM = keyPEM
	return c
}

// WithRootCAs sets the PEM-encoded root certificates trusted when verifying
// the server. Passing any value replaces the system pool with these roots,
// matching crypto/tls.Config.RootCAs semantics.
func (c *Client) WithRootCAs(pemBlocks [][]byte) *Client {
	c.tls.RootCAsPEM = pemBlocks
	return c
}

// WithTLSVersions bounds the negotiable TLS version range. Zero values leave
// the tlsadapter defaults in place.
func (c *Client) WithTLSVersions(min, max uint16) *Client {
	c.tls.MinVersion = min
	c.tls.MaxVersion = max
	return c
}

// Execute runs req to completion, following redirects, and returns the
// accumulated Response. It is the library's primary entry point.
func (c *Client) Execute(ctx context.Context, req *request.Request) (*response.Response, error) {
	s := sink.NewLibrarySink()
	if err := c.ExecuteTo(ctx, req, s); err != nil {
		return nil, err
	}
	return s.Response()
}

// ExecuteTo drives req through the engine, forwarding decoded response bytes
// to sink. It is exposed directly for callers (the CLI) that want to stream
// rather than buffer the full body in memory.
func (c *Client) ExecuteTo(ctx context.Context, req *request.Request, snk decoder.Sink) error {
	readTimeoutMS := c.readTimeoutMS
	if c.requestTimeoutMS > 0 && readTimeoutMS > c.requestTimeoutMS {
		log.Warnf("read timeout %dms exceeds request timeout %dms, clamping", readTimeoutMS, c.requestTimeoutMS)
		readTimeoutMS = c.requestTimeoutMS
	}

	current := req
	followed := c.maxRedirects
	reqID := uuid.New()

	for {
		log.Debugf("[%s] %s %s://%s%s", reqID, current.Method, current.Scheme, current.Authority(), current.Target)

		redirect, err := c.attempt(ctx, current, snk, readTimeoutMS)
		if err != nil {
			if ferr := snk.Flush(); ferr != nil {
				log.Debugf("[%s] flush after error: %v", reqID, ferr)
			}
			return err
		}
		if redirect == nil {
			return nil
		}

		if followed == 0 {
			if ferr := snk.Flush(); ferr != nil {
				log.Debugf("[%s] flush after max-redirects: %v", reqID, ferr)
			}
			return cerrors.MaxRedirectionAttempt(c.maxRedirects)
		}
		followed--

		next, err := buildRedirectRequest(current, redirect)
		if err != nil {
			if ferr := snk.Flush(); ferr != nil {
				log.Debugf("[%s] flush after redirect-build error: %v", reqID, ferr)
			}
			return err
		}
		log.Debugf("[%s] following %d redirect to %s", reqID, redirect.Kind, redirect.Location)
		current = next
	}
}

// attempt performs one full connect/write/decode cycle for req, closing its
// connection before returning. A non-nil, nil-error Redirect return means
// the caller should rebuild and retry; the sink has not been touched.
func (c *Client) attempt(ctx context.Context, req *request.Request, snk decoder.Sink, readTimeoutMS int) (*decoder.Redirect, error) {
	connectCtx := ctx
	var cancelConnect context.CancelFunc
	if c.connectTimeoutMS > 0 {
		connectCtx, cancelConnect = context.WithTimeout(ctx, time.Duration(c.connectTimeoutMS)*time.Millisecond)
		defer cancelConnect()
	}

	conn, err := c.connect(connectCtx, req)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(req.ToBytes()); err != nil {
		return nil, cerrors.IO("writing request", err)
	}

	dec := decoder.New(conn, readTimeoutMS)
	return c.readAndStream(ctx, dec, conn, snk)
}

// connect resolves req's authority (honoring overrides and the family
// filter) and opens a TCP connection, wrapping it in TLS when req.Scheme is
// https. Both steps share connectCtx's deadline, per §4.5 step (b)-(c).
func (c *Client) connect(connectCtx context.Context, req *request.Request) (net.Conn, error) {
	authority := req.Authority()

	// GetAddr consults c.overrides first and only falls back to DNS when
	// the authority is not overridden.
	addr, err := c.resolver.GetAddr(connectCtx, authority, c.overrides, c.ipv4, c.ipv6, c.dnsTimeoutMS)
	if err != nil {
		return nil, err
	}

	conn, err := transport.Dial(connectCtx, addr, c.connectTimeoutMS)
	if err != nil {
		return nil, err
	}

	if req.Scheme != "https" {
		return conn, nil
	}

	tlsConn, err := tlsadapter.Handshake(connectCtx, conn, req.Host, c.tls)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Debugf("tls handshake to %s complete, negotiated %s", req.Host, tlsConn.NegotiatedVersionName())
	return tlsConn, nil
}

// readAndStream runs the decoder's header and body phases, bounding the
// whole thing by t_request when configured (§4.5 step (e)). When the
// overall deadline fires, the result is IO("Request Timeout"), unless a
// read's own deadline already fired, in which case that read's
// IO("Read Timeout") takes precedence.
func (c *Client) readAndStream(ctx context.Context, dec *decoder.Decoder, conn net.Conn, snk decoder.Sink) (*decoder.Redirect, error) {
	if c.requestTimeoutMS <= 0 {
		redirect, err := dec.ReadHeaders(snk)
		if err != nil || redirect != nil {
			return redirect, err
		}
		return nil, dec.StreamBody(snk)
	}

	type result struct {
		redirect *decoder.Redirect
		err      error
	}
	done := make(chan result, 1)
	go func() {
		redirect, err := dec.ReadHeaders(snk)
		if err != nil || redirect != nil {
			done <- result{redirect, err}
			return
		}
		done <- result{nil, dec.StreamBody(snk)}
	}()

	timer := time.NewTimer(time.Duration(c.requestTimeoutMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.redirect, res.err
	case <-timer.C:
		// A read whose own deadline already fired has reported first and
		// takes precedence over our request-timeout verdict. Otherwise force
		// the in-flight read to unblock; the timeout that forced read then
		// reports is ours, not the read's.
		select {
		case res := <-done:
			if isReadTimeout(res.err) {
				return nil, res.err
			}
		default:
			_ = conn.SetDeadline(time.Now())
			<-done
		}
		return nil, cerrors.IO("Request Timeout", nil)
	case <-ctx.Done():
		select {
		case res := <-done:
			if isReadTimeout(res.err) {
				return nil, res.err
			}
		default:
			_ = conn.SetDeadline(time.Now())
			<-done
		}
		return nil, cerrors.IO("Request Timeout", ctx.Err())
	}
}

func isReadTimeout(err error) bool {
	var cerr *cerrors.Error
	return errors.As(err, &cerr) && cerr.Kind == cerrors.KindIO && cerr.Detail == "Read Timeout"
}

// buildRedirectRequest constructs the next Request per §4.5 step (f): 307/308
// preserve method and body, other redirected 3xx codes downgrade to a
// bodiless GET. Only a USER-AGENT: or SET-COOKIE: header line from the prior
// request's own header list is carried forward.
func buildRedirectRequest(prev *request.Request, redirect *decoder.Redirect) (*request.Request, error) {
	base, err := prev.BaseURL()
	if err != nil {
		return nil, cerrors.URLParse(redirect.Location, err)
	}
	rel, err := url.Parse(redirect.Location)
	if err != nil {
		return nil, cerrors.URLParse(redirect.Location, err)
	}
	target := base.ResolveReference(rel)

	b := request.NewBuilder(target.String())
	if redirect.Kind.PreservesMethodAndBody() {
		b.SetMethod(prev.Method).SetBody(prev.Body)
	}

	for _, h := range prev.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "USER-AGENT":
			b.SetUserAgent(strings.TrimSpace(value))
		case "SET-COOKIE":
			b.AddHeader(h)
		}
	}

	return b.Build()
}
