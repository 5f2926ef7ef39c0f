package types

import (
	"bytes"
	"encoding/binary"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

// Data is a DATA packet. After UnmarshalBinary, Payload aliases the decoded
// datagram and is only valid until that buffer is reused.
type Data struct {
	Payload  []byte
	BlockNum uint16
	Opcode   OpCode
}

func NewData(blockNum uint16, payload []byte) *Data {
	return &Data{Opcode: OpCodeDATA, BlockNum: blockNum, Payload: payload}
}

// Last reports whether the packet terminates a transfer.
func (d *Data) Last() bool {
	return len(d.Payload) < MaxPayloadSize
}

func (d *Data) MarshalBinary() ([]byte, error) {
	if len(d.Payload) > MaxPayloadSize {
		return nil, utils.ErrDataPayloadTooBig
	}

	b := new(bytes.Buffer)
	b.Grow(HeaderSize + len(d.Payload))

	if err := binary.Write(b, binary.BigEndian, &d.Opcode); err != nil {
		return nil, errors.Wrap(err, "error while writing opcode")
	}

	if err := binary.Write(b, binary.BigEndian, &d.BlockNum); err != nil {
		return nil, errors.Wrap(err, "error while writing block#")
	}

	if _, err := b.Write(d.Payload); err != nil {
		return nil, errors.Wrap(err, "error while writing payload")
	}

	return b.Bytes(), nil
}

func (d *Data) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return utils.ErrPacketTooShort
	}

	if len(data) > DatagramSize {
		return utils.ErrDataPayloadTooBig
	}

	b := bytes.NewReader(data)

	if err := binary.Read(b, binary.BigEndian, &d.Opcode); err != nil {
		return errors.Wrap(err, "error while reading opcode")
	}

	if d.Opcode != OpCodeDATA {
		return utils.ErrWrongOpCode
	}

	if err := binary.Read(b, binary.BigEndian, &d.BlockNum); err != nil {
		return errors.Wrap(err, "error while reading block#")
	}

	d.Payload = data[HeaderSize:]

	return nil
}

// PutHeader writes a 4-byte opcode/block header at the start of buf, which
// must hold at least HeaderSize bytes.
func PutHeader(buf []byte, opcode OpCode, blockNum uint16) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(opcode))
	binary.BigEndian.PutUint16(buf[2:4], blockNum)
}
