//go:build windows

package transport

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func control() func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var opErr error

		err := c.Control(func(fd uintptr) {
			opErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
		})
		if err != nil {
			return err
		}

		return opErr
	}
}
