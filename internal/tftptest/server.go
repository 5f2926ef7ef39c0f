// Package tftptest provides an in-memory lockstep TFTP server for exercising
// clients over loopback UDP.
package tftptest

import (
	"bytes"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Server struct {
	l        *zap.SugaredLogger
	conn     *net.UDPConn
	timeout  time.Duration
	numTries int

	// duplicate sends every DATA packet twice.
	duplicate bool

	mu    sync.Mutex
	files map[string][]byte
	wg    sync.WaitGroup
}

type Option func(*Server)

func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.timeout = timeout
	}
}

func WithNumTries(numTries int) Option {
	return func(s *Server) {
		s.numTries = numTries
	}
}

// WithDuplicateData makes the server send each DATA packet twice in a row.
func WithDuplicateData() Option {
	return func(s *Server) {
		s.duplicate = true
	}
}

// NewServer listens on an ephemeral loopback port and serves until Close.
func NewServer(l *zap.SugaredLogger, opts ...Option) (*Server, error) {
	s := &Server{
		l:        l,
		timeout:  time.Second,
		numTries: 5,
		files:    make(map[string][]byte),
	}

	for _, opt := range opts {
		opt(s)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, errors.Wrap(err, "error while starting the udp server")
	}

	s.conn = conn

	s.wg.Add(1)

	go s.serve()

	return s, nil
}

func (s *Server) Port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Store seeds a file the server can send.
func (s *Server) Store(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = bytes.Clone(content)
}

// File returns a file the server holds, either seeded or fully received.
func (s *Server) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.files[name]

	return b, ok
}

// Close stops the listener and waits for running transfers.
func (s *Server) Close() error {
	err := s.conn.Close()

	s.wg.Wait()

	if err != nil {
		return errors.Wrap(err, "error while closing connection")
	}

	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	datagram := make([]byte, types.DatagramSize)

	for {
		n, addr, err := s.conn.ReadFromUDP(datagram)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.l.Errorf("error while reading request: %s", err)
			}

			return
		}

		var req types.Request

		if err := req.UnmarshalBinary(datagram[:n]); err != nil {
			s.l.Errorf("error while reading request from %s: %s", addr, err)

			continue
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			if err := s.handle(addr, &req); err != nil {
				s.l.Errorf("error while serving %s %s: %s", req.Opcode, req.Filename, err)
			}
		}()
	}
}

// handle answers from a fresh socket, so the client sees a new transfer id.
func (s *Server) handle(addr *net.UDPAddr, req *types.Request) (err error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return errors.Wrap(err, "error while opening transfer socket")
	}

	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	t := &transfer{
		conn:      conn,
		peer:      addr,
		l:         s.l,
		timeout:   s.timeout,
		numTries:  s.numTries,
		duplicate: s.duplicate,
	}

	if req.Mode != types.ModeOctet {
		return t.sendError(types.NewError(types.ErrIllegalTftpOp, "only octet mode is supported"))
	}

	switch req.Opcode {
	case types.OpCodeRRQ:
		content, ok := s.File(req.Filename)
		if !ok {
			return t.sendError(types.NewError(types.ErrFileNotFound, req.Filename+" not found"))
		}

		return t.send(content)
	case types.OpCodeWRQ:
		content, last, err := t.receive()
		if err != nil {
			return err
		}

		s.Store(req.Filename, content)

		return t.write(types.NewAck(last))
	default:
		return utils.ErrWrongOpCode
	}
}

type transfer struct {
	conn      *net.UDPConn
	peer      *net.UDPAddr
	l         *zap.SugaredLogger
	timeout   time.Duration
	numTries  int
	duplicate bool
}

func (t *transfer) write(p types.Packet) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "error while marshalling packet")
	}

	if _, err := t.conn.WriteToUDP(b, t.peer); err != nil {
		return errors.Wrap(err, "error while writing packet")
	}

	return nil
}

func (t *transfer) sendError(e *types.Error) error {
	return t.write(e)
}

// read waits for the next datagram from the peer; datagrams from other
// addresses are dropped.
func (t *transfer) read(buf []byte) (int, error) {
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, errors.Wrap(err, "error while setting read timeout")
		}

		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return 0, err
		}

		if addr.Port == t.peer.Port && addr.IP.Equal(t.peer.IP) {
			return n, nil
		}
	}
}

func (t *transfer) send(content []byte) error {
	buf := make([]byte, types.DatagramSize)
	var blockNum uint16 = 1

	for offset := 0; ; blockNum++ {
		end := min(offset+types.MaxPayloadSize, len(content))
		block := content[offset:end]

		if err := t.sendBlock(buf, types.NewData(blockNum, block)); err != nil {
			return errors.Wrapf(err, "error while sending block#=%d", blockNum)
		}

		offset = end

		if len(block) < types.MaxPayloadSize {
			return nil
		}
	}
}

func (t *transfer) sendBlock(buf []byte, data *types.Data) error {
	var ack types.Ack

	for tries := t.numTries; tries > 0; tries-- {
		if err := t.write(data); err != nil {
			return err
		}

		if t.duplicate {
			if err := t.write(data); err != nil {
				return err
			}
		}

		for {
			n, err := t.read(buf)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					t.l.Debugf("no ack for block#=%d, resending", data.BlockNum)

					break
				}

				return err
			}

			if err := ack.UnmarshalBinary(buf[:n]); err != nil {
				return errors.Wrap(err, "error while unmarshalling ack")
			}

			if ack.BlockNum == data.BlockNum {
				return nil
			}
		}
	}

	return errors.New("error: packet can not be sent")
}

// receive collects DATA blocks until the final one, which it returns
// unacknowledged so the caller can commit the file first.
func (t *transfer) receive() ([]byte, uint16, error) {
	var (
		content  bytes.Buffer
		data     types.Data
		expected uint16 = 1
	)

	buf := make([]byte, types.DatagramSize)

	if err := t.write(types.NewAck(0)); err != nil {
		return nil, 0, err
	}

	for tries := t.numTries; tries > 0; {
		n, err := t.read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				tries--

				t.l.Debugf("no data after block#=%d, re-acknowledging", expected-1)

				if err := t.write(types.NewAck(expected - 1)); err != nil {
					return nil, 0, err
				}

				continue
			}

			return nil, 0, err
		}

		if err := data.UnmarshalBinary(buf[:n]); err != nil {
			return nil, 0, errors.Wrap(err, "error while unmarshalling data packet")
		}

		if data.BlockNum == expected {
			content.Write(data.Payload)
			expected++

			if data.Last() {
				return content.Bytes(), data.BlockNum, nil
			}
		}

		if err := t.write(types.NewAck(data.BlockNum)); err != nil {
			return nil, 0, err
		}
	}

	return nil, 0, errors.New("error: transfer timed out")
}
