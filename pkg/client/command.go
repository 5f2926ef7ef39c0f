package client

import (
	"strings"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
)

type Operation int

const (
	OpGet Operation = iota + 1
	OpPut
)

func (o Operation) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	default:
		return "unknown"
	}
}

// Verb describes what happens to the bytes of an operation, as shown in the
// progress line.
func (o Operation) Verb() string {
	if o == OpPut {
		return "written"
	}

	return "received"
}

// ParseOperation accepts "get" or "put" in any letter case.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "get":
		return OpGet, nil
	case "put":
		return OpPut, nil
	default:
		return 0, errors.Wrapf(utils.ErrUsage, "unknown operation %q", s)
	}
}

type Command struct {
	Host     string
	Op       Operation
	Filename string
}

// ParseCommand validates the positional arguments <host> <get|put> <filename>.
func ParseCommand(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, errors.Wrapf(utils.ErrUsage, "expected 3 arguments, got %d", len(args))
	}

	if strings.TrimSpace(args[0]) == "" {
		return Command{}, errors.Wrap(utils.ErrUsage, "empty host")
	}

	op, err := ParseOperation(args[1])
	if err != nil {
		return Command{}, err
	}

	return Command{Host: args[0], Op: op, Filename: args[2]}, nil
}
