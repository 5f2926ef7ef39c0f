package types

import (
	"bytes"
	"encoding/binary"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

type Request struct {
	Filename string
	Mode     string
	Opcode   OpCode
}

// NewRequest builds an octet-mode RRQ or WRQ.
func NewRequest(opcode OpCode, filename string) *Request {
	return &Request{Opcode: opcode, Filename: filename, Mode: ModeOctet}
}

func (r *Request) MarshalBinary() ([]byte, error) {
	if r.Filename == "" {
		return nil, utils.ErrEmptyFilename
	}

	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return nil, utils.ErrWrongOpCode
	}

	b := new(bytes.Buffer)
	b.Grow(2 + len(r.Filename) + 1 + len(r.Mode) + 1)

	if err := binary.Write(b, binary.BigEndian, &r.Opcode); err != nil {
		return nil, errors.Wrap(err, "error while writing opcode")
	}

	if _, err := b.WriteString(r.Filename); err != nil {
		return nil, errors.Wrap(err, "error while writing filename")
	}

	if err := b.WriteByte(0); err != nil {
		return nil, errors.Wrap(err, "error while writing null byte after filename")
	}

	if _, err := b.WriteString(r.Mode); err != nil {
		return nil, errors.Wrap(err, "error while writing mode")
	}

	if err := b.WriteByte(0); err != nil {
		return nil, errors.Wrap(err, "error while writing null byte after mode")
	}

	return b.Bytes(), nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return utils.ErrPacketTooShort
	}

	rd := bytes.NewBuffer(data)

	if err := binary.Read(rd, binary.BigEndian, &r.Opcode); err != nil {
		return errors.Wrap(err, "error while decoding opcode")
	}

	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return utils.ErrWrongOpCode
	}

	filename, err := rd.ReadBytes(0)
	if err != nil {
		return errors.Wrap(err, "error while decoding filename")
	}

	mode, err := rd.ReadBytes(0)
	if err != nil {
		return errors.Wrap(err, "error while decoding mode")
	}

	r.Filename = string(filename[:len(filename)-1])
	r.Mode = string(mode[:len(mode)-1])

	if r.Filename == "" {
		return utils.ErrEmptyFilename
	}

	return nil
}
