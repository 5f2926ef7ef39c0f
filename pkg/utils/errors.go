package utils

import "github.com/pkg/errors"

var (
	ErrWrongOpCode       = errors.New("error: invalid operation code")
	ErrDataPayloadTooBig = errors.New("error: payload exceeds 512 bytes")
	ErrEmptyFilename     = errors.New("error: empty filename")
	ErrPacketTooShort    = errors.New("error: packet too short")
	ErrUnexpectedPacket  = errors.New("error: unexpected packet received")
	ErrRemote            = errors.New("error: remote host reported an error")
	ErrReadTimeout       = errors.New("error: read timed out")
	ErrShortWrite        = errors.New("error: datagram partially written")
	ErrUnknownPeer       = errors.New("error: datagram from unknown transfer id")
)

var ErrUsage = errors.New("error: usage: tftp <host> <get|put> <filename>")
