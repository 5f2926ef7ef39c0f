package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

type Error struct {
	ErrMsg    string
	ErrorCode ErrCode
	Opcode    OpCode
}

func NewError(code ErrCode, msg string) *Error {
	return &Error{Opcode: OpCodeError, ErrorCode: code, ErrMsg: msg}
}

func (e *Error) String() string {
	return fmt.Sprintf("code %d: %s", e.ErrorCode, e.ErrMsg)
}

func (e *Error) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	b.Grow(HeaderSize + len(e.ErrMsg) + 1)

	if err := binary.Write(b, binary.BigEndian, &e.Opcode); err != nil {
		return nil, errors.Wrap(err, "error while writing opcode")
	}

	if err := binary.Write(b, binary.BigEndian, &e.ErrorCode); err != nil {
		return nil, errors.Wrap(err, "error while writing error code")
	}

	if _, err := b.WriteString(e.ErrMsg); err != nil {
		return nil, errors.Wrap(err, "error while writing error message")
	}

	if err := b.WriteByte(0); err != nil {
		return nil, errors.Wrap(err, "error while writing null byte")
	}

	return b.Bytes(), nil
}

// UnmarshalBinary tolerates a missing NUL terminator; the message then runs
// to the end of the datagram.
func (e *Error) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return utils.ErrPacketTooShort
	}

	b := bytes.NewReader(data)

	if err := binary.Read(b, binary.BigEndian, &e.Opcode); err != nil {
		return errors.Wrap(err, "error while reading opcode")
	}

	if e.Opcode != OpCodeError {
		return utils.ErrWrongOpCode
	}

	if err := binary.Read(b, binary.BigEndian, &e.ErrorCode); err != nil {
		return errors.Wrap(err, "error while reading error code")
	}

	msg := data[HeaderSize:]
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	e.ErrMsg = string(msg)

	return nil
}
