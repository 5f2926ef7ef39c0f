package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/client"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
	"github.com/urfave/cli"
	"gopkg.in/cheggaaa/pb.v2"
)

var (
	logLevel = utils.GetEnv[string]("TFTP_LOG_LEVEL", "info", false)
	port     = utils.GetEnv[uint]("TFTP_PORT", "69", false)
	trace    = utils.GetEnv[bool]("TFTP_TRACE", "false", false)
	timeout  = utils.GetEnv[time.Duration]("TFTP_TIMEOUT", "2", false)
)

func main() {
	app := cli.NewApp()
	app.Name = "tftp"
	app.Usage = "TFTP client, octet mode"
	app.UsageText = "tftp [options] <host> <get|put> <filename>\n\n   Example: tftp 192.168.1.104 get example.txt"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.UintFlag{
			Name:  "port, p",
			Value: port,
			Usage: "server port",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: timeout,
			Usage: "how long to wait for each reply",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: logLevel,
			Usage: "debug, info, warn or error",
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "log every packet (needs --log-level debug)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cmd, err := client.ParseCommand(c.Args())
	if err != nil {
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}

		return cli.NewExitError("", 1)
	}

	l := utils.NewLogger(c.String("log-level")).Sugar()

	defer func() {
		_ = l.Sync()
	}()

	fmt.Printf("\nStart TFTP Client %s:%d\n", cmd.Host, c.Uint("port"))

	bar := newProgressBar(cmd.Op)

	tftpClient := client.NewClient(l, cmd.Host,
		client.WithPort(int(c.Uint("port"))),
		client.WithTimeout(c.Duration("timeout")),
		client.WithTrace(trace || c.Bool("trace")),
		client.WithProgress(func(op client.Operation, bytes int64, blocks uint64) {
			bar.Set("status", progressLine(op, bytes, blocks)).SetCurrent(bytes)
		}),
	)

	begin := time.Now()
	_, err = tftpClient.Run(cmd.Op, cmd.Filename)
	elapsed := time.Since(begin)

	bar.Finish()

	if err != nil {
		l.Debugf("%s %s: %s", cmd.Op, cmd.Filename, err)

		printFailure(os.Stdout, err)

		return cli.NewExitError("", 1)
	}

	fmt.Printf("\nElapsed time: %d [ms]\n\n", elapsed.Milliseconds())

	return nil
}

// printFailure writes the status description on the stream the progress
// line uses.
func printFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "\n%s\n\n", client.StatusOf(err).Description())
}

func progressLine(op client.Operation, bytes int64, blocks uint64) string {
	return fmt.Sprintf("%d bytes (%d blocks) %s", bytes, blocks, op.Verb())
}

// newProgressBar renders only the status line, rewritten in place.
func newProgressBar(op client.Operation) *pb.ProgressBar {
	bar := pb.ProgressBarTemplate(`{{string . "status"}}`).New(0)
	bar.SetWriter(os.Stdout)
	bar.SetRefreshRate(100 * time.Millisecond)
	bar.Set("status", progressLine(op, 0, 0))

	return bar.Start()
}
