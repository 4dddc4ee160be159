package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/pickle"
)

func runEncode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("pickle encode", pflag.ContinueOnError)
	opts.addFlags(fs, "write the pickle as hex text")

	if ok, err := parseFlags(fs, args, stderr, "pickle encode --schema FILE --type NAME [--hex] [INPUT]"); !ok {
		return err
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

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("parsing input: %w", err)
	}
	if node.Kind == 0 {
		return errors.New("input is empty")
	}

	var buf bytes.Buffer
	w, _ := pickle.NewWriter(&buf)
	n, err := s.Encode(w, opts.typeName, &node)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", opts.typeName, err)
	}
	if _, err := w.Result(); err != nil {
		return err
	}
	out := buf.Bytes()
	defer pickle.Zero(out)
	logger.Debug("encoded pickle", zap.String("type", opts.typeName), zap.Int("bytes", n))

	if opts.hex {
		_, err = fmt.Fprintln(stdout, hex.EncodeToString(out))
		return err
	}
	_, err = stdout.Write(out)
	return err
}
