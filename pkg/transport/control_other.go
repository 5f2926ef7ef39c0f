//go:build !unix && !windows

package transport

import "syscall"

func control() func(network, address string, c syscall.RawConn) error {
	return nil
}
