package types

import (
	"encoding"
	"encoding/binary"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

// Packet is any TFTP packet the client can put on or take off the wire.
type Packet interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Decode parses a datagram received by the client. DATA, ACK and ERROR are
// the only packets a client expects from a server; anything else, including a
// malformed datagram, yields an error wrapping utils.ErrUnexpectedPacket.
func Decode(datagram []byte) (Packet, error) {
	if len(datagram) < 2 {
		return nil, errors.Wrapf(utils.ErrUnexpectedPacket, "datagram of %d bytes", len(datagram))
	}

	var p Packet

	opcode := OpCode(binary.BigEndian.Uint16(datagram))

	switch opcode {
	case OpCodeDATA:
		p = &Data{}
	case OpCodeACK:
		p = &Ack{}
	case OpCodeError:
		p = &Error{}
	default:
		return nil, errors.Wrapf(utils.ErrUnexpectedPacket, "opcode %d (%s)", uint16(opcode), opcode)
	}

	if err := p.UnmarshalBinary(datagram); err != nil {
		return nil, errors.Wrapf(utils.ErrUnexpectedPacket, "malformed %s packet: %s", opcode, err)
	}

	return p, nil
}
