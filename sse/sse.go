// Package sse decodes the chat streaming endpoint's server-sent events into
// content chunks.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/converse"
	"github.com/rs/zerolog"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// payload is one data line of the stream.
type payload struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   string `json:"error"`
}

type decoder struct {
	logger        zerolog.Logger
	onDecodeError func(*converse.StreamDecodeError)
}

// Option configures Decode.
type Option func(*decoder)

// WithLogger sets the logger malformed lines are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(d *decoder) { d.logger = l }
}

// OnDecodeError registers a hook called for every malformed data line.
func OnDecodeError(fn func(*converse.StreamDecodeError)) Option {
	return func(d *decoder) { d.onDecodeError = fn }
}

// Decode reads r line by line and calls onChunk, synchronously and in
// order, with the content of every data payload.
//
// Decode returns nil when a payload signals done (the rest of r is not
// read) or when r is exhausted. A payload carrying an error ends decoding
// with a *converse.StreamServerError after its content, if any, has been
// delivered. Malformed lines are logged and skipped.
func Decode(r io.Reader, onChunk func(string), opts ...Option) error {
	d := decoder{logger: zerolog.Nop()}
	for _, o := range opts {
		o(&d)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxLineSize)
	for scanner.Scan() {
		data, ok := dataField(scanner.Text())
		if !ok {
			// Comments, keep-alives and other SSE fields.
			continue
		}
		if strings.TrimSpace(data) == "" {
			continue
		}

		var p payload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			d.decodeError(&converse.StreamDecodeError{Line: data, Err: err})
			continue
		}
		if p.Content != "" {
			onChunk(p.Content)
		}
		if p.Error != "" {
			return &converse.StreamServerError{Message: p.Error}
		}
		if p.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (d *decoder) decodeError(err *converse.StreamDecodeError) {
	d.logger.Warn().Err(err).Msg("skipping malformed stream line")
	if d.onDecodeError != nil {
		d.onDecodeError(err)
	}
}

// dataField returns the value of a "data:" line with the single optional
// leading space removed.
func dataField(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
