package client

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/transport"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultPort = 69

type Connector interface {
	Get(filename string) (Result, error)
	Put(filename string) (Result, error)
}

var _ Connector = (*Client)(nil)

// Client transfers one file per call. It holds configuration only; every
// call opens its own socket and local file and releases both before
// returning.
type Client struct {
	host     string
	port     int
	l        *zap.SugaredLogger
	timeout  time.Duration
	trace    bool
	localDir string
	progress ProgressFunc
	dial     transport.Dialer
}

type Option func(*Client)

func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithTimeout sets the receive timeout of the default UDP transport.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithTrace(trace bool) Option {
	return func(c *Client) {
		c.trace = trace
	}
}

// WithLocalDir resolves local file names relative to dir. The remote file
// name is sent unchanged.
func WithLocalDir(dir string) Option {
	return func(c *Client) {
		c.localDir = dir
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

func WithDialer(dial transport.Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

func NewClient(l *zap.SugaredLogger, host string, opts ...Option) *Client {
	c := &Client{
		l:       l,
		host:    host,
		port:    DefaultPort,
		timeout: transport.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dial == nil {
		c.dial = transport.UDPDialer(c.timeout)
	}

	return c
}

// Get downloads filename into a local file of the same name.
func (c *Client) Get(filename string) (Result, error) {
	return c.Run(OpGet, filename)
}

// Put uploads the local file filename under the same name.
func (c *Client) Put(filename string) (Result, error) {
	return c.Run(OpPut, filename)
}

func (c *Client) Run(op Operation, filename string) (res Result, err error) {
	if op != OpGet && op != OpPut {
		return Result{}, errors.Wrapf(utils.ErrUsage, "unknown operation %d", int(op))
	}

	if filename == "" {
		return Result{}, fail(StatusEmptyFilename, 0, utils.ErrEmptyFilename)
	}

	t, err := c.dial()
	if err != nil {
		return Result{}, fail(StatusInvalidSocket, 0, err)
	}

	server, err := transport.Resolve(c.host, c.port)
	if err != nil {
		return Result{}, fail(StatusWriteError, 0, multierr.Append(err, t.Close()))
	}

	file, err := c.open(op, filename)
	if err != nil {
		return Result{}, fail(StatusOpenFileError, 0, multierr.Append(err, t.Close()))
	}

	defer func() {
		fileErr := file.Close()

		if closeErr := multierr.Append(fileErr, t.Close()); closeErr != nil {
			c.l.Errorf("error while releasing %s resources: %s", op, closeErr)
		}

		if fileErr != nil && err == nil && op == OpGet {
			err = fail(StatusWriteFileError, res.Bytes, errors.Wrap(fileErr, "error while closing file"))
			res = Result{}
		}
	}()

	s := newSession(t, server, c.l, c.trace, c.progress)

	if op == OpGet {
		res, err = s.download(filename, file)
	} else {
		res, err = s.upload(filename, file)
	}

	if err != nil {
		return Result{}, err
	}

	c.l.Infof("%s %s: %s in %d blocks", op, filename, units.HumanSize(float64(res.Bytes)), res.Blocks)

	return res, nil
}

func (c *Client) open(op Operation, filename string) (*os.File, error) {
	path := filename
	if c.localDir != "" {
		path = filepath.Join(c.localDir, filename)
	}

	if op == OpGet {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "error while opening %s for writing", path)
		}

		return f, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error while opening %s for reading", path)
	}

	return f, nil
}
