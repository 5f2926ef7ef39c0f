package client

import (
	"io"
	"net"

	"github.com/Wa4h1h/go-tftp-client/pkg/transport"
	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ProgressFunc is called after every block the transfer completes.
type ProgressFunc func(op Operation, bytes int64, blocks uint64)

// session runs exactly one transfer and is discarded afterwards.
type session struct {
	t        transport.Transport
	l        *zap.SugaredLogger
	trace    bool
	progress ProgressFunc

	// server receives the request; peer is the transfer id learned from
	// the first reply and stays fixed for the rest of the transfer.
	server *net.UDPAddr
	peer   *net.UDPAddr

	rx []byte
	tx []byte

	block  uint16
	bytes  int64
	blocks uint64
}

func newSession(t transport.Transport, server *net.UDPAddr, l *zap.SugaredLogger,
	trace bool, progress ProgressFunc,
) *session {
	return &session{
		t:        t,
		l:        l,
		trace:    trace,
		progress: progress,
		server:   server,
		rx:       make([]byte, types.DatagramSize),
		tx:       make([]byte, types.DatagramSize),
	}
}

func (s *session) result() Result {
	return Result{Bytes: s.bytes, Blocks: s.blocks}
}

func (s *session) report(op Operation) {
	if s.progress != nil {
		s.progress(op, s.bytes, s.blocks)
	}
}

// download requests filename and appends every new block to w until a block
// shorter than types.MaxPayloadSize arrives.
func (s *session) download(filename string, w io.Writer) (Result, error) {
	if err := s.sendRequest(types.OpCodeRRQ, filename); err != nil {
		return Result{}, err
	}

	for {
		p, err := s.receive()
		if err != nil {
			return Result{}, err
		}

		data, ok := p.(*types.Data)
		if !ok {
			return Result{}, fail(StatusUnexpectedPacket, s.bytes,
				errors.Wrapf(utils.ErrUnexpectedPacket, "%T while waiting for data", p))
		}

		if after(data.BlockNum, s.block) {
			if _, err := w.Write(data.Payload); err != nil {
				return Result{}, fail(StatusWriteFileError, s.bytes,
					errors.Wrapf(err, "error while writing block#=%d", data.BlockNum))
			}

			s.block = data.BlockNum
			s.bytes += int64(len(data.Payload))
			s.blocks++

			if s.trace {
				s.l.Debugf("received block#=%d, received #bytes=%d", data.BlockNum, len(data.Payload))
			}
		} else if s.trace {
			s.l.Debugf("duplicate block#=%d, last block#=%d", data.BlockNum, s.block)
		}

		if err := s.sendAck(data.BlockNum); err != nil {
			return Result{}, err
		}

		s.report(OpGet)

		if data.Last() {
			s.l.Debugf("received %d blocks, received %d bytes", s.blocks, s.bytes)

			return s.result(), nil
		}
	}
}

// upload writes r to filename on the server. A DATA packet stays in s.tx
// until the peer acknowledges its block, so an ack for any other block makes
// the next pass send the same packet again. There is no retry bound; only the
// transport's read timeout ends a peer that keeps acking the wrong block.
func (s *session) upload(filename string, r io.Reader) (Result, error) {
	if err := s.sendRequest(types.OpCodeWRQ, filename); err != nil {
		return Result{}, err
	}

	ack, err := s.receiveAck()
	if err != nil {
		return Result{}, err
	}

	if ack.BlockNum != 0 {
		return Result{}, fail(StatusUnexpectedPacket, 0,
			errors.Wrapf(utils.ErrUnexpectedPacket, "write request acknowledged with block#=%d", ack.BlockNum))
	}

	var (
		acked   = ack.BlockNum
		n       int
		eof     bool
		pending bool
	)

	for {
		if acked == s.block {
			if pending {
				s.bytes += int64(n)
				s.blocks++
				pending = false

				s.report(OpPut)
			}

			if eof {
				s.l.Debugf("sent %d blocks, sent %d bytes", s.blocks, s.bytes)

				return s.result(), nil
			}

			s.block++

			n, err = io.ReadFull(r, s.tx[types.HeaderSize:])
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				eof = true
			case err != nil:
				return Result{}, fail(StatusReadFileError, s.bytes,
					errors.Wrapf(err, "error while reading block#=%d", s.block))
			}

			types.PutHeader(s.tx, types.OpCodeDATA, s.block)
			pending = true
		}

		if _, err := s.t.Send(s.tx[:types.HeaderSize+n], s.peer); err != nil {
			return Result{}, fail(StatusWriteError, s.bytes, err)
		}

		if s.trace {
			s.l.Debugf("sent block#=%d, sent #bytes=%d", s.block, n)
		}

		ack, err := s.receiveAck()
		if err != nil {
			return Result{}, err
		}

		acked = ack.BlockNum

		if acked != s.block {
			s.l.Warnf("ack block# %d != expected block# %d", acked, s.block)
		}
	}
}

func (s *session) sendRequest(opcode types.OpCode, filename string) error {
	b, err := types.NewRequest(opcode, filename).MarshalBinary()
	if err != nil {
		if errors.Is(err, utils.ErrEmptyFilename) {
			return fail(StatusEmptyFilename, 0, err)
		}

		return fail(StatusWriteError, 0, errors.Wrapf(err, "error while marshalling %s", opcode))
	}

	if _, err := s.t.Send(b, s.server); err != nil {
		return fail(StatusWriteError, 0, err)
	}

	if s.trace {
		s.l.Debugf("sent %s filename=%s to %s", opcode, filename, s.server)
	}

	return nil
}

func (s *session) sendAck(blockNum uint16) error {
	b, err := types.NewAck(blockNum).MarshalBinary()
	if err != nil {
		return fail(StatusWriteError, s.bytes, err)
	}

	if _, err := s.t.Send(b, s.peer); err != nil {
		return fail(StatusWriteError, s.bytes, err)
	}

	return nil
}

func (s *session) receiveAck() (*types.Ack, error) {
	p, err := s.receive()
	if err != nil {
		return nil, err
	}

	ack, ok := p.(*types.Ack)
	if !ok {
		return nil, fail(StatusUnexpectedPacket, s.bytes,
			errors.Wrapf(utils.ErrUnexpectedPacket, "%T while waiting for ack", p))
	}

	return ack, nil
}

// receive returns the next packet from the peer. ERROR packets end the
// transfer as a read failure. Datagrams from any other address are refused
// and do not count as a reply, nor do they extend the wait for one.
func (s *session) receive() (types.Packet, error) {
	deadline := s.t.Deadline()

	for {
		n, from, err := s.t.Receive(s.rx, deadline)
		if err != nil {
			return nil, fail(StatusReadError, s.bytes, err)
		}

		switch {
		case s.peer == nil:
			s.peer = from

			if s.trace {
				s.l.Debugf("transfer id %s", from)
			}
		case !sameAddr(s.peer, from):
			s.l.Warn(s.refuse(from))

			continue
		}

		p, err := types.Decode(s.rx[:n])
		if err != nil {
			s.l.Errorf("unexpected packet received from %s: %s", from, err)

			return nil, fail(StatusUnexpectedPacket, s.bytes, err)
		}

		if e, ok := p.(*types.Error); ok {
			s.l.Errorf("message from remote host: %s", e.ErrMsg)

			return nil, fail(StatusReadError, s.bytes, errors.Wrap(utils.ErrRemote, e.String()))
		}

		return p, nil
	}
}

// refuse answers a datagram from a stranger with ERROR 5 and returns why it
// was dropped.
func (s *session) refuse(from *net.UDPAddr) error {
	err := errors.Wrapf(utils.ErrUnknownPeer, "datagram from %s ignored, transfer id is %s", from, s.peer)

	b, merr := types.NewError(types.ErrUnknownTransferId, "unknown transfer id").MarshalBinary()
	if merr != nil {
		return multierr.Append(err, merr)
	}

	if _, serr := s.t.Send(b, from); serr != nil {
		return multierr.Append(err, errors.Wrapf(serr, "error while refusing %s", from))
	}

	return err
}

// after reports whether block comes after last in 16-bit serial number
// order, so block 0 follows 65535.
func after(block, last uint16) bool {
	return int16(block-last) > 0
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
