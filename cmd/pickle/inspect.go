package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/pickle"
	"github.com/oy3o/pickle/schema"
)

func runInspect(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("pickle inspect", pflag.ContinueOnError)
	opts.addFlags(fs, "read the input as hex text")
	format := fs.StringP("format", "f", "yaml", "output format: yaml, json or cbor")

	if ok, err := parseFlags(fs, args, stderr, "pickle inspect --schema FILE --type NAME [--format yaml|json|cbor] [--hex] [INPUT]"); !ok {
		return err
	}
	switch *format {
	case "yaml", "json", "cbor":
	default:
		return fmt.Errorf("unknown format %q (want yaml, json or cbor)", *format)
	}

	logger := newLogger(stderr, opts.verbose)
	defer func() { _ = logger.Sync() }()

	s, err := opts.load(logger, true)
	if err != nil {
		return err
	}
	data, err := readInput(fs.Args(), stdin)
	if err != nil {
		return err
	}
	if opts.hex {
		if data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), "")); err != nil {
			return fmt.Errorf("reading hex input: %w", err)
		}
	}
	defer pickle.Zero(data)

	logger.Debug("decoding pickle", zap.String("type", opts.typeName), zap.Int("bytes", len(data)))
	r := pickle.NewBytesSource(data)
	v, err := s.Decode(r, opts.typeName)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", opts.typeName, err)
	}
	if rest := len(data) - int(r.Count()); rest > 0 {
		logger.Warn("ignoring trailing bytes after the pickle",
			zap.Int64("consumed", r.Count()), zap.Int("trailing", rest))
	}

	return render(stdout, *format, v)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "cbor":
		out, err := schema.MarshalCBOR(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
