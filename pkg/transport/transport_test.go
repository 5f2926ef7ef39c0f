package transport

import (
	"net"
	"testing"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopback(u *UDP) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: u.LocalAddr().Port}
}

func TestSendReceive(t *testing.T) {
	a, err := Listen(time.Second)
	require.NoError(t, err)
	defer a.Close()

	b, err := Listen(time.Second)
	require.NoError(t, err)
	defer b.Close()

	n, err := a.Send([]byte{0x00, 0x04, 0x00, 0x01}, loopback(b))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 516)
	n, from, err := b.Receive(buf, b.Deadline())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x04, 0x00, 0x01}, buf[:n])
	assert.Equal(t, a.LocalAddr().Port, from.Port)
}

func TestReceiveTimeout(t *testing.T) {
	u, err := Listen(50 * time.Millisecond)
	require.NoError(t, err)
	defer u.Close()

	start := time.Now()
	_, _, err = u.Receive(make([]byte, 516), u.Deadline())

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrReadTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReceiveAfterClose(t *testing.T) {
	u, err := Listen(time.Second)
	require.NoError(t, err)
	require.NoError(t, u.Close())

	_, _, err = u.Receive(make([]byte, 516), u.Deadline())
	require.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrReadTimeout)
}

func TestReceivePastDeadline(t *testing.T) {
	u, err := Listen(time.Minute)
	require.NoError(t, err)
	defer u.Close()

	start := time.Now()
	_, _, err = u.Receive(make([]byte, 516), start.Add(-time.Millisecond))

	assert.ErrorIs(t, err, utils.ErrReadTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListenDefaultTimeout(t *testing.T) {
	u, err := Listen(0)
	require.NoError(t, err)
	defer u.Close()

	assert.Equal(t, DefaultTimeout, u.timeout)
}

func TestResolve(t *testing.T) {
	addr, err := Resolve("127.0.0.1", 69)
	require.NoError(t, err)
	assert.Equal(t, 69, addr.Port)
	assert.True(t, addr.IP.Equal(net.IPv4(127, 0, 0, 1)))

	_, err = Resolve("", -1)
	assert.Error(t, err)
}
