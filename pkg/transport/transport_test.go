package transport

import (
	"context"
	"net"
	"testing"
	"time"

	cerrors "github.com/mardiros/cabot/pkg/errors"
)

func TestDialConnectsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	conn, err := Dial(context.Background(), ln.Addr(), 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
}

func TestDialTimesOutOnUnroutableAddress(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation (RFC 5737) and never routes.
	addr, err := net.ResolveTCPAddr("tcp", "192.0.2.1:81")
	if err != nil {
		t.Fatalf("resolving test address: %v", err)
	}

	start := time.Now()
	_, err = Dial(context.Background(), addr, 50)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if !cerrors.Is(err, cerrors.KindIO) {
		t.Fatalf("expected an IO error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Dial took too long to time out: %v", elapsed)
	}
}
