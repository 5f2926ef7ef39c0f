package transport

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

// DefaultTimeout is how long a reply is awaited when no timeout is given.
const DefaultTimeout = 2 * time.Second

// Transport moves single datagrams between the client and any peer address.
type Transport interface {
	Send(b []byte, addr *net.UDPAddr) (int, error)
	// Deadline returns when a wait for a reply starting now expires.
	Deadline() time.Time
	// Receive fails with utils.ErrReadTimeout once deadline passes.
	Receive(b []byte, deadline time.Time) (int, *net.UDPAddr, error)
	Close() error
}

// Dialer opens the transport a transfer runs on.
type Dialer func() (Transport, error)

type UDP struct {
	conn    *net.UDPConn
	timeout time.Duration
}

// Listen opens an unconnected IPv4 socket on an ephemeral local port.
// Deadline lies timeout after the moment it is called.
func Listen(timeout time.Duration) (*UDP, error) {
	l := net.ListenConfig{
		Control: control(),
	}

	pc, err := l.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "error while opening udp socket")
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &UDP{conn: pc.(*net.UDPConn), timeout: timeout}, nil
}

// UDPDialer returns a Dialer that calls Listen with the given timeout.
func UDPDialer(timeout time.Duration) Dialer {
	return func() (Transport, error) {
		return Listen(timeout)
	}
}

func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

// Send writes b as one datagram. A partial write returns utils.ErrShortWrite
// together with the count written.
func (u *UDP) Send(b []byte, addr *net.UDPAddr) (int, error) {
	n, err := u.conn.WriteToUDP(b, addr)
	if err != nil {
		return n, errors.Wrapf(err, "error while writing datagram to %s", addr)
	}

	if n != len(b) {
		return n, errors.Wrapf(utils.ErrShortWrite, "%d of %d bytes to %s", n, len(b), addr)
	}

	return n, nil
}

func (u *UDP) Deadline() time.Time {
	return time.Now().Add(u.timeout)
}

func (u *UDP) Receive(b []byte, deadline time.Time) (int, *net.UDPAddr, error) {
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, errors.Wrap(err, "error while setting read timeout")
	}

	n, addr, err := u.conn.ReadFromUDP(b)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil, errors.Wrapf(utils.ErrReadTimeout, "no datagram before %s", deadline.Format(time.StampMilli))
		}

		return 0, nil, errors.Wrap(err, "error while reading datagram")
	}

	return n, addr, nil
}

func (u *UDP) Close() error {
	if err := u.conn.Close(); err != nil {
		return errors.Wrap(err, "error while closing connection")
	}

	return nil
}

// Resolve looks up an IPv4 address for host.
func Resolve(host string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrapf(err, "error while resolving %s", host)
	}

	return addr, nil
}
