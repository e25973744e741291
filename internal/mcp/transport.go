// ABOUTME: Newline-delimited stdio transport for the MCP server.
// ABOUTME: A single reader goroutine feeds lines; messages are handled strictly one at a time.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ServeStdio runs the server on the process's stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC messages from in and writes each
// response as one line to out, flushing after every response. Messages are
// processed in arrival order with no overlap, so responses keep request
// order. Serve returns nil at end of input and ctx.Err() on cancellation.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	frames := make(chan frame)
	readErr := make(chan error, 1)
	go readLines(readCtx, in, frames, readErr)

	w := bufio.NewWriter(out)
	s.logger.Info("MCP stdio transport started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("MCP stdio transport stopping", "reason", ctx.Err())
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				s.logger.Info("MCP stdio transport reached end of input")
				return nil
			}

			var resp []byte
			if f.tooLarge {
				s.logger.Warn("dropping oversize message", "limit", MaxMessageSize)
				resp = s.tooLargeResponse()
			} else {
				s.logger.Debug("received message", "bytes", len(f.data))
				resp = s.HandleMessage(ctx, f.data)
			}
			if resp == nil {
				continue
			}
			if err := writeLine(w, resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// frame is one input line. An oversize frame carries no data; the rest of
// its line was discarded by the reader.
type frame struct {
	data     []byte
	tooLarge bool
}

// readLines is the only goroutine touching in. It skips blank lines and
// hands each trimmed message to frames, blocking until the loop takes it.
// It sends exactly one value on errc before closing frames.
func readLines(ctx context.Context, in io.Reader, frames chan<- frame, errc chan<- error) {
	defer close(frames)

	r := bufio.NewReader(in)
	for {
		f, err := readFrame(r)
		f.data = bytes.TrimSpace(f.data)
		if len(f.data) > 0 || f.tooLarge {
			select {
			case frames <- f:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			errc <- err
			return
		}
	}
}

// readFrame reads through the next newline, buffering at most
// MaxMessageSize bytes plus a line terminator. Longer lines are consumed
// and dropped.
func readFrame(r *bufio.Reader) (frame, error) {
	var f frame
	for {
		chunk, err := r.ReadSlice('\n')
		if !f.tooLarge {
			f.data = append(f.data, chunk...)
			if len(f.data) > MaxMessageSize+len("\r\n") {
				f.data = nil
				f.tooLarge = true
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return f, err
	}
}

func writeLine(w *bufio.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
