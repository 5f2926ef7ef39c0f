package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status classifies how a transfer ended.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvalidSocket
	StatusWriteError
	StatusReadError
	StatusUnexpectedPacket
	StatusEmptyFilename
	StatusOpenFileError
	StatusWriteFileError
	StatusReadFileError
)

var statusNames = map[Status]string{
	StatusSuccess:          "Success",
	StatusInvalidSocket:    "InvalidSocket",
	StatusWriteError:       "WriteError",
	StatusReadError:        "ReadError",
	StatusUnexpectedPacket: "UnexpectedPacketReceived",
	StatusEmptyFilename:    "EmptyFilename",
	StatusOpenFileError:    "OpenFileError",
	StatusWriteFileError:   "WriteFileError",
	StatusReadFileError:    "ReadFileError",
}

var statusDescriptions = map[Status]string{
	StatusSuccess:          "Success.",
	StatusInvalidSocket:    "Error! Invalid Socket.",
	StatusWriteError:       "Error! Write Socket.",
	StatusReadError:        "Error! Read Socket.",
	StatusUnexpectedPacket: "Error! Unexpected Packet Received.",
	StatusEmptyFilename:    "Error! Empty Filename.",
	StatusOpenFileError:    "Error! Can't Open File.",
	StatusWriteFileError:   "Error! Write File.",
	StatusReadFileError:    "Error! Read File.",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Description is the fixed text shown to users for s.
func (s Status) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}

	return "Error!"
}

// Result is what a successful transfer moved.
type Result struct {
	Bytes  int64
	Blocks uint64
}

// TransferError is returned by Get and Put for every failed transfer.
// Bytes counts file bytes moved before the failure.
type TransferError struct {
	Status Status
	Bytes  int64
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return e.Status.String()
	}

	return fmt.Sprintf("%s: %s", e.Status, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func fail(status Status, bytes int64, err error) *TransferError {
	return &TransferError{Status: status, Bytes: bytes, Err: err}
}

// StatusOf maps err to the status it carries. Errors that are not transfer
// errors map to StatusReadError; nil maps to StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}

	var te *TransferError
	if errors.As(err, &te) {
		return te.Status
	}

	return StatusReadError
}
