package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/spf13/cobra"
)

func decodeCmd() *cobra.Command {
	var (
		maxFrame uint32
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "decode <capture>",
		Short: "Decode a raw AMQP byte capture, one frame per line",
		Long: `Decode reads a raw capture of one direction of an AMQP connection.
A leading protocol header is accepted and reported. Use "-" for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			n, err := decodeCapture(in, cmd.OutOrStdout(), frame.Limits{MaxBodyBytes: maxFrame}, verbose)
			if err != nil {
				return fmt.Errorf("frame %d: %w", n+1, err)
			}
			return nil
		},
	}

	cmd.Flags().Uint32Var(&maxFrame, "max-frame", 0, "Largest accepted frame body in bytes (0 for no limit)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print decoded method fields")
	return cmd
}

// decodeCapture writes one line per frame in r to w and returns the number of
// frames decoded.
func decodeCapture(r io.Reader, w io.Writer, limits frame.Limits, verbose bool) (int, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(4); err == nil && bytes.Equal(prefix, protocol.ProtocolHeader[:4]) {
		if _, err := protocol.ReadProtocolHeader(br); err != nil {
			return 0, err
		}
		fmt.Fprintln(w, "protocol-header AMQP 0-9-1")
	}

	n := 0
	for {
		f, err := protocol.ReadFrame(br, limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		fmt.Fprintf(w, "ch=%-5d %-9s %s", f.ChannelID(), f.FrameType(), protocol.Describe(f))
		if verbose {
			fmt.Fprintf(w, " %s", detail(f))
		}
		fmt.Fprintln(w)
		n++
	}
}

func detail(f protocol.Frame) string {
	switch v := f.(type) {
	case protocol.MethodFrame:
		return fmt.Sprintf("%+v", v.Method)
	case protocol.GenericBasic:
		return fmt.Sprintf("rest=%d bytes", len(v.Rest))
	case protocol.GenericFrame:
		return fmt.Sprintf("body=%d bytes", len(v.Body))
	default:
		return ""
	}
}
