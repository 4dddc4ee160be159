// pickle inspects and builds pickles from a YAML description of their
// layout (see package schema).
//
//	pickle inspect --schema olm.yaml --type Account account.pickle
//	pickle encode --schema olm.yaml --type Account --hex account.yaml
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/oy3o/pickle/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches one command line. It only talks to the given streams so
// tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("no command given")
	}

	switch args[0] {
	case "inspect":
		return runInspect(args[1:], stdin, stdout, stderr)
	case "encode":
		return runEncode(args[1:], stdin, stdout, stderr)
	case "types":
		return runTypes(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q (see \"pickle help\")", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `pickle reads and writes pickles described by a YAML schema.

Usage:
  pickle inspect --schema FILE --type NAME [--format yaml|json|cbor] [--hex] [INPUT]
  pickle encode  --schema FILE --type NAME [--hex] [INPUT]
  pickle types   --schema FILE

INPUT is a file path, or standard input when omitted or "-".

Commands:
  inspect  decode a pickle and print it
  encode   build a pickle from a YAML value
  types    list the types a schema defines

Run "pickle COMMAND --help" for the flags of a command.
`)
}

// options are the flags every command shares.
type options struct {
	schemaPath string
	typeName   string
	hex        bool
	verbose    bool
}

func (o *options) addFlags(fs *pflag.FlagSet, hexUsage string) {
	fs.StringVarP(&o.schemaPath, "schema", "s", "", "path to the YAML schema (required)")
	fs.StringVarP(&o.typeName, "type", "t", "", "name of the pickled type (required)")
	fs.BoolVar(&o.hex, "hex", false, hexUsage)
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log progress to stderr")
}

// parseFlags parses args and reports whether the command should go on.
func parseFlags(fs *pflag.FlagSet, args []string, stderr io.Writer, usage string) (bool, error) {
	fs.SetOutput(stderr)
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(fs, stderr, usage)
			return false, nil
		}
		return false, err
	}
	if help, _ := fs.GetBool("help"); help {
		printHelp(fs, stderr, usage)
		return false, nil
	}
	return true, nil
}

func printHelp(fs *pflag.FlagSet, w io.Writer, usage string) {
	fmt.Fprintf(w, "Usage:\n  %s\n\nFlags:\n", usage)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// load reads the schema and checks the requested type exists.
func (o *options) load(logger *zap.Logger, needType bool) (*schema.Schema, error) {
	if o.schemaPath == "" {
		return nil, errors.New("--schema is required")
	}
	if needType && o.typeName == "" {
		return nil, errors.New("--type is required")
	}

	s, err := schema.Load(o.schemaPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded schema", zap.String("path", o.schemaPath), zap.Strings("types", s.Names()))

	if needType {
		if _, ok := s.Lookup(o.typeName); !ok {
			return nil, fmt.Errorf("schema %s does not define %q (known: %s)",
				o.schemaPath, o.typeName, strings.Join(s.Names(), ", "))
		}
	}
	return s, nil
}

// readInput reads the single optional INPUT argument.
func readInput(args []string, stdin io.Reader) ([]byte, error) {
	switch {
	case len(args) > 1:
		return nil, fmt.Errorf("unexpected argument: %s", args[1])
	case len(args) == 0 || args[0] == "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(args[0])
	}
}
