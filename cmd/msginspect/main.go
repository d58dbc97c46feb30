// Command msginspect reads raw HTTP/1.x messages from a file or stdin and
// prints one JSON document per message describing its decoded view.
//
// Usage:
//
//	msginspect [-ast] [-scheme https] [file]
//
// Settings such as the body limit come from SHAPE_MESSAGE_* environment
// variables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/shapestone/shape-message/internal/config"
	"github.com/shapestone/shape-message/pkg/message"
	"github.com/shapestone/shape-message/pkg/wire"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "msginspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("msginspect", flag.ContinueOnError)
	astView := fs.Bool("ast", false, "print the syntax tree instead of the decoded message")
	scheme := fs.String("scheme", "http", "scheme used to rebuild request URIs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	defer logger.Sync() //nolint:errcheck

	in := stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return errors.Wrap(err, "failed to open input")
		}
		defer f.Close()
		in = f
	}

	opts := append(cfg.WireOptions(logger), wire.WithScheme(*scheme))
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if *astView {
		node, err := wire.ParseReader(in, opts...)
		if err != nil {
			return err
		}
		return enc.Encode(wire.NodeToInterface(node))
	}
	return inspect(wire.NewDecoder(in, opts...), enc, logger)
}

func inspect(dec *wire.Decoder, enc *json.Encoder, logger *zap.Logger) error {
	for n := 1; ; n++ {
		v, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "message %d", n)
		}
		logger.Debug("decoded message", zap.Int("index", n))
		if err := enc.Encode(view(v)); err != nil {
			return errors.Wrap(err, "failed to write output")
		}
	}
}

type fieldView struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type messageView struct {
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	Method     string         `json:"method,omitempty"`
	URI        string         `json:"uri,omitempty"`
	Target     string         `json:"target,omitempty"`
	Query      map[string]any `json:"query,omitempty"`
	StatusCode int            `json:"statusCode,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Headers    []fieldView    `json:"headers"`
	MediaType  string         `json:"mediaType,omitempty"`
	Size       int64          `json:"size"`
	Parsed     any            `json:"parsedBody,omitempty"`
	ParseError string         `json:"parseError,omitempty"`
}

func view(v message.Marshaler) messageView {
	var out messageView
	switch m := v.(type) {
	case *message.Request:
		out = messageView{
			Type:      "request",
			Version:   m.ProtocolVersion(),
			Method:    m.Method(),
			URI:       m.URI().String(),
			Target:    m.RequestTarget(),
			Query:     m.QueryParams(),
			MediaType: m.MediaType(),
		}
		parsed, err := m.ParsedBody()
		if err != nil {
			out.ParseError = err.Error()
		}
		out.Parsed = parsed
		out.Headers = fields(m.Headers())
		out.Size = size(m.Message)
	case *message.Response:
		out = messageView{
			Type:       "response",
			Version:    m.ProtocolVersion(),
			StatusCode: m.StatusCode(),
			Reason:     m.ReasonPhrase(),
		}
		out.Headers = fields(m.Headers())
		out.Size = size(m.Message)
	}
	return out
}

func fields(h message.Headers) []fieldView {
	return lo.Map(h.All(), func(f message.Field, _ int) fieldView {
		return fieldView{Name: f.Name, Values: f.Values}
	})
}

func size(m message.Message) int64 {
	n, ok := m.Body().Size()
	if !ok {
		return -1
	}
	return n
}
