package types

type OpCode uint16

const (
	OpCodeRRQ OpCode = iota + 1
	OpCodeWRQ
	OpCodeDATA
	OpCodeACK
	OpCodeError
	OpCodeOACK
)

func (o OpCode) String() string {
	switch o {
	case OpCodeRRQ:
		return "RRQ"
	case OpCodeWRQ:
		return "WRQ"
	case OpCodeDATA:
		return "DATA"
	case OpCodeACK:
		return "ACK"
	case OpCodeError:
		return "ERROR"
	case OpCodeOACK:
		return "OACK"
	default:
		return "UNKNOWN"
	}
}

type ErrCode uint16

const (
	ErrNotDefined ErrCode = iota
	ErrFileNotFound
	ErrAccessViolation
	ErrDiskFull
	ErrIllegalTftpOp
	ErrUnknownTransferId
	ErrFileAlreadyExists
	ErrNoSuchUser
)

const (
	HeaderSize     = 4
	MaxPayloadSize = 512
	DatagramSize   = HeaderSize + MaxPayloadSize
)

// ModeOctet is the only transfer mode the client speaks.
const ModeOctet = "octet"
