package types

import (
	"bytes"
	"encoding/binary"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

type Ack struct {
	Opcode   OpCode
	BlockNum uint16
}

func NewAck(blockNum uint16) *Ack {
	return &Ack{Opcode: OpCodeACK, BlockNum: blockNum}
}

func (a *Ack) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	b.Grow(HeaderSize)

	if err := binary.Write(b, binary.BigEndian, &a.Opcode); err != nil {
		return nil, errors.Wrap(err, "error while writing opcode")
	}

	if err := binary.Write(b, binary.BigEndian, &a.BlockNum); err != nil {
		return nil, errors.Wrap(err, "error while writing block#")
	}

	return b.Bytes(), nil
}

func (a *Ack) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return utils.ErrPacketTooShort
	}

	b := bytes.NewReader(data)

	if err := binary.Read(b, binary.BigEndian, &a.Opcode); err != nil {
		return errors.Wrap(err, "error while reading opcode")
	}

	if a.Opcode != OpCodeACK {
		return utils.ErrWrongOpCode
	}

	if err := binary.Read(b, binary.BigEndian, &a.BlockNum); err != nil {
		return errors.Wrap(err, "error while reading block#")
	}

	return nil
}
