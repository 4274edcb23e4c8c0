// Package transport opens the single plain-TCP connection the engine drives
// one request over. There is no pooling or reuse: every call to Dial returns
// a fresh socket that the caller owns exclusively from connect to close.
package transport

import (
	"context"
	"net"
	"time"

	cerrors "github.com/mardiros/cabot/pkg/errors"
)

// Dial opens a TCP connection to addr, bounded by timeoutMS (0 disables the
// bound and defers entirely to ctx). A deadline expiry surfaces as
// IO("Connection Timeout"), matching §4.5 step (b) of the engine.
func Dial(ctx context.Context, addr net.Addr, timeoutMS int) (net.Conn, error) {
	dialCtx := ctx
	if timeoutMS > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, addr.Network(), addr.String())
	if err != nil {
		if dialCtx.Err() == context.DeadlineExceeded {
			return nil, cerrors.IO("Connection Timeout", err)
		}
		return nil, cerrors.IO("connecting to "+addr.String(), err)
	}
	return conn, nil
}
