package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/oy3o/pickle/schema"
)

func runTypes(args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("pickle types", pflag.ContinueOnError)
	opts.addFlags(fs, "unused")
	_ = fs.MarkHidden("hex")
	_ = fs.MarkHidden("type")

	if ok, err := parseFlags(fs, args, stderr, "pickle types --schema FILE"); !ok {
		return err
	}

	logger := newLogger(stderr, opts.verbose)
	defer func() { _ = logger.Sync() }()

	s, err := opts.load(logger, false)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, name := range s.Names() {
		t, _ := s.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, describe(t))
	}
	return tw.Flush()
}

// describe spells out the layout of a definition.
func describe(t *schema.Type) string {
	if t.Kind != schema.KindRecord && t.Kind != schema.KindUnion {
		return t.String()
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + " " + f.Type.String()
		if f.Secret {
			parts[i] += " (secret)"
		}
	}
	return t.Kind.String() + " {" + strings.Join(parts, ", ") + "}"
}
