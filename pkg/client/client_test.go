package client

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Wa4h1h/go-tftp-client/internal/tftptest"
	"github.com/Wa4h1h/go-tftp-client/pkg/transport"
	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, opts ...tftptest.Option) *tftptest.Server {
	t.Helper()

	srv, err := tftptest.NewServer(zaptest.NewLogger(t).Sugar(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, srv.Close())
	})

	return srv
}

func newTestClient(t *testing.T, srv *tftptest.Server, dir string, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{
		WithPort(srv.Port()),
		WithLocalDir(dir),
		WithTimeout(time.Second),
	}, opts...)

	return NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1", opts...)
}

func randomContent(size int) []byte {
	b := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(b)

	return b
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 511, 512, 513, types.MaxPayloadSize*1000 + 1}

	srv := newTestServer(t)

	for _, size := range sizes {
		t.Run("", func(t *testing.T) {
			name := "file.bin"
			content := randomContent(size)

			srcDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(srcDir, name), content, 0o644))

			res, err := newTestClient(t, srv, srcDir).Put(name)
			require.NoError(t, err)
			assert.Equal(t, int64(size), res.Bytes)

			stored, ok := srv.File(name)
			require.True(t, ok)
			requireSameBytes(t, content, stored)

			dstDir := t.TempDir()

			res, err = newTestClient(t, srv, dstDir).Get(name)
			require.NoError(t, err)
			assert.Equal(t, int64(size), res.Bytes)

			got, err := os.ReadFile(filepath.Join(dstDir, name))
			require.NoError(t, err)
			requireSameBytes(t, content, got)
		})
	}
}

func TestGetTruncatesExistingFile(t *testing.T) {
	srv := newTestServer(t)
	srv.Store("small.txt", []byte("new"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.txt"), []byte("much longer old content"), 0o644))

	_, err := newTestClient(t, srv, dir).Get("small.txt")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "small.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestGetDuplicatedData(t *testing.T) {
	srv := newTestServer(t, tftptest.WithDuplicateData())
	content := randomContent(5*types.MaxPayloadSize + 100)
	srv.Store("dup.bin", content)

	dir := t.TempDir()

	res, err := newTestClient(t, srv, dir).Get("dup.bin")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), res.Blocks)

	got, err := os.ReadFile(filepath.Join(dir, "dup.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGetMissingRemoteFile(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	_, err := newTestClient(t, srv, dir).Get("missing.txt")

	requireStatus(t, err, StatusReadError)
	assert.ErrorIs(t, err, utils.ErrRemote)
	assert.Contains(t, err.Error(), "missing.txt not found")

	// the destination is created before the transfer and left in place
	info, statErr := os.Stat(filepath.Join(dir, "missing.txt"))
	require.NoError(t, statErr)
	assert.Zero(t, info.Size())
}

func TestGetTimeoutKeepsPartialFile(t *testing.T) {
	first := bytes.Repeat([]byte{'k'}, types.MaxPayloadSize)
	ft := &fakeTransport{replies: []reply{dataFrom(t, 1, first)}}
	dir := t.TempDir()

	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1", WithLocalDir(dir),
		WithDialer(func() (transport.Transport, error) { return ft, nil }))

	_, err := c.Get("partial.bin")

	te := requireStatus(t, err, StatusReadError)
	assert.Equal(t, int64(types.MaxPayloadSize), te.Bytes)
	assert.True(t, ft.closed)

	got, err := os.ReadFile(filepath.Join(dir, "partial.bin"))
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestProgress(t *testing.T) {
	srv := newTestServer(t)
	content := randomContent(3*types.MaxPayloadSize + 1)
	srv.Store("progress.bin", content)

	type update struct {
		op     Operation
		bytes  int64
		blocks uint64
	}

	var updates []update

	c := newTestClient(t, srv, t.TempDir(), WithTrace(true), WithProgress(func(op Operation, bytes int64, blocks uint64) {
		updates = append(updates, update{op: op, bytes: bytes, blocks: blocks})
	}))

	_, err := c.Get("progress.bin")
	require.NoError(t, err)

	require.Len(t, updates, 4)
	assert.Equal(t, update{op: OpGet, bytes: int64(len(content)), blocks: 4}, updates[3])
}

func TestEmptyFilenameSendsNothing(t *testing.T) {
	dialed := 0
	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1", WithDialer(func() (transport.Transport, error) {
		dialed++

		return &fakeTransport{}, nil
	}))

	_, err := c.Get("")
	requireStatus(t, err, StatusEmptyFilename)

	_, err = c.Put("")
	requireStatus(t, err, StatusEmptyFilename)

	assert.Zero(t, dialed)
}

func TestInvalidSocket(t *testing.T) {
	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1", WithDialer(func() (transport.Transport, error) {
		return nil, errors.New("no sockets left")
	}))

	_, err := c.Get("f")
	requireStatus(t, err, StatusInvalidSocket)
}

func TestPutMissingLocalFile(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1", WithLocalDir(t.TempDir()),
		WithDialer(func() (transport.Transport, error) { return ft, nil }))

	_, err := c.Put("absent.bin")

	requireStatus(t, err, StatusOpenFileError)
	assert.Empty(t, ft.sent)
	assert.True(t, ft.closed)
}

func TestGetUnwritableDestination(t *testing.T) {
	ft := &fakeTransport{}
	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1",
		WithLocalDir(filepath.Join(t.TempDir(), "no", "such", "dir")),
		WithDialer(func() (transport.Transport, error) { return ft, nil }))

	_, err := c.Get("f")

	requireStatus(t, err, StatusOpenFileError)
	assert.Empty(t, ft.sent)
}

func TestRunRejectsUnknownOperation(t *testing.T) {
	c := NewClient(zaptest.NewLogger(t).Sugar(), "127.0.0.1")

	_, err := c.Run(Operation(9), "f")
	assert.ErrorIs(t, err, utils.ErrUsage)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusWriteFileError, StatusOf(fail(StatusWriteFileError, 0, nil)))
	assert.Equal(t, StatusUnexpectedPacket,
		StatusOf(errors.Wrap(fail(StatusUnexpectedPacket, 0, utils.ErrUnexpectedPacket), "wrapped")))
	assert.Equal(t, StatusReadError, StatusOf(errors.New("other")))
}

func TestStatusDescription(t *testing.T) {
	assert.Equal(t, "Success.", StatusSuccess.Description())
	assert.Equal(t, "Error! Read Socket.", StatusReadError.Description())
	assert.Equal(t, "Error! Empty Filename.", StatusEmptyFilename.Description())
	assert.Equal(t, "Error!", Status(99).Description())
	assert.Equal(t, "UnexpectedPacketReceived", StatusUnexpectedPacket.String())
	assert.Equal(t, "Status(99)", Status(99).String())
}
