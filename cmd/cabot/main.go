// Command cabot is the command-line front-end for the cabot HTTP/1.1 client:
// build one request from flags, run it through a client.Client, and stream
// the response to stdout (or -o) the way the reference CLI does.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/mardiros/cabot/pkg/client"
	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/request"
	"github.com/mardiros/cabot/pkg/sink"
)

// -- Support for repeatable -H and --resolve flags on the command line.

type stringList struct{ values []string }

func (l *stringList) String() string { return strings.Join(l.values, ",") }
func (l *stringList) Set(v string) error {
	l.values = append(l.values, v)
	return nil
}

var (
	methodFlag  = flag.String("X", "GET", "HTTP method to use")
	headerFlags stringList
	dataFlag    = flag.String("d", "", "Request body, sent as-is (UTF-8)")
	uaFlag      = flag.String("A", "", "User-Agent header to send (default cabot's own)")
	outputFlag  = flag.String("o", "", "Write the response body to `PATH` instead of stdout")
	verboseFlag = flag.Bool("v", false, "Write the raw response header block to stderr")
	ipv4Flag    = flag.Bool("4", false, "Resolve host names to IPv4 addresses")
	ipv6Flag    = flag.Bool("6", false, "Resolve host names to IPv6 addresses")
	resolveFlags stringList

	dnsTimeoutFlag     = flag.Int("dns-timeout", 5, "DNS lookup timeout, in seconds")
	connectTimeoutFlag = flag.Int("connect-timeout", 15, "TCP connect timeout, in seconds")
	readTimeoutFlag    = flag.Int("read-timeout", 10, "Per-read timeout, in seconds")
	maxTimeFlag        = flag.Int("max-time", 0, "Overall request timeout, in seconds (0 disables it)")
	maxRedirsFlag      = flag.Int("max-redirs", 16, "Maximum number of redirects to follow")

	insecureFlag = flag.Bool("insecure", false, "Do not verify the server's TLS certificate")
	certFlag     = flag.String("cert", "", "`PATH` to a PEM client certificate, for mTLS")
	keyFlag      = flag.String("key", "", "`PATH` to the PEM key matching -cert")
)

func main() {
	flag.Var(&headerFlags, "H", "Custom header line 'Name: value' (repeatable)")
	flag.Var(&resolveFlags, "resolve", "host:port:address override (repeatable)")

	cli.ProgramName = "cabot"
	cli.ArgsHelp = "url"
	cli.MinArgs = 1
	cli.MaxArgs = 1
	cli.Main()

	if *verboseFlag {
		log.SetLogLevel(log.Verbose)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(rawURL string) error {
	b := request.NewBuilder(rawURL).SetMethod(*methodFlag).AddHeaders(headerFlags.values)
	if *uaFlag != "" {
		b.SetUserAgent(*uaFlag)
	}
	if *dataFlag != "" {
		b.SetBodyString(*dataFlag)
	}
	req, err := b.Build()
	if err != nil {
		return err
	}

	c := client.New().
		WithDNSTimeout(*dnsTimeoutFlag * 1000).
		WithConnectTimeout(*connectTimeoutFlag * 1000).
		WithReadTimeout(*readTimeoutFlag * 1000).
		WithRequestTimeout(*maxTimeFlag * 1000).
		WithMaxRedirects(*maxRedirsFlag).
		WithAddressFamily(*ipv4Flag, *ipv6Flag)

	for _, r := range resolveFlags.values {
		host, port, address, err := splitResolve(r)
		if err != nil {
			return err
		}
		c.WithResolveOverride(host, port, address)
	}

	if *insecureFlag {
		c.WithInsecureTLS()
	}
	if *certFlag != "" || *keyFlag != "" {
		certPEM, err := os.ReadFile(*certFlag)
		if err != nil {
			return cerrors.IO("reading -cert", err)
		}
		keyPEM, err := os.ReadFile(*keyFlag)
		if err != nil {
			return cerrors.IO("reading -key", err)
		}
		c.WithClientCertificate(certPEM, keyPEM)
	}

	out := os.Stdout
	if *outputFlag != "" {
		f, err := os.Create(*outputFlag)
		if err != nil {
			return cerrors.IO("opening -o", err)
		}
		defer f.Close()
		out = f
	}

	var headerOut io.Writer
	if *verboseFlag {
		headerOut = os.Stderr
	}
	s := sink.NewCLISink(headerOut, out)

	if err := c.ExecuteTo(context.Background(), req, s); err != nil {
		return err
	}
	return nil
}

// splitResolve parses curl's "host:port:address" --resolve form.
func splitResolve(spec string) (host, port, address string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid --resolve format: %q", spec)
	}
	host, port, address = parts[0], parts[1], parts[2]
	if _, _, err := net.SplitHostPort(net.JoinHostPort(address, port)); err != nil {
		return "", "", "", fmt.Errorf("invalid --resolve address in %q: %w", spec, err)
	}
	return host, port, address, nil
}
