// Program vetxslt parses a source schema, a target schema, and an
// XSLT-like stylesheet, and reports whether the stylesheet is guaranteed
// to carry every document the source schema admits into one the target
// schema admits (§6).
//
// Usage: vetxslt --source FILE --target FILE --stylesheet FILE [--format FORMAT]
//
// FORMAT, which defaults to "analyze", selects which stage of the
// pipeline to report on. Use "vetxslt --help" for the list of formats.
//
// Exit status is 0 if the stylesheet is valid, 1 if it is not (or any
// other error occurred), and 2 specifically when the subset linter
// rejected the stylesheet before the rest of the pipeline ever ran.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pborman/getopt"
	"github.com/vetxslt/vetxslt"
	"github.com/vetxslt/vetxslt/pkg/indent"
)

// inputs bundles the three raw documents a formatter may need. Not every
// formatter uses every field: "lint" and "mtt" only read Stylesheet,
// "source-grammar" only reads Source, and so on.
type inputs struct {
	Source     string
	Target     string
	Stylesheet string
}

// formatter mirrors goyang's format registry (yang.go's
// `formatter`/`register`): each format is a self-contained unit that
// knows how to run its slice of the pipeline and report an exit status,
// rather than one large switch inside main.
type formatter struct {
	name string
	f    func(w *os.File, in inputs) int
	help string
}

var formatters = map[string]*formatter{}

func register(f *formatter) {
	formatters[f.name] = f
}

var stop = os.Exit

func main() {
	var source, target, stylesheet, format string
	var help bool

	formats := make([]string, 0, len(formatters))
	for k := range formatters {
		formats = append(formats, k)
	}
	sort.Strings(formats)

	getopt.StringVarLong(&source, "source", 0, "path to the source schema", "FILE")
	getopt.StringVarLong(&target, "target", 0, "path to the target schema", "FILE")
	getopt.StringVarLong(&stylesheet, "stylesheet", 0, "path to the stylesheet", "FILE")
	getopt.StringVarLong(&format, "format", 0, "format to report: "+strings.Join(formats, ", "), "FORMAT")
	getopt.BoolVarLong(&help, "help", '?', "display help")
	getopt.SetParameters("")

	getopt.Parse()

	if help {
		getopt.CommandLine.PrintUsage(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nFormats:\n")
		for _, fn := range formats {
			fmt.Fprintf(indent.NewWriter(os.Stderr, "  "), "%s - %s\n", fn, formatters[fn].help)
		}
		stop(0)
		return
	}

	if format == "" {
		format = "analyze"
	}
	fm, ok := formatters[format]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: invalid format. Choices are %s\n", format, strings.Join(formats, ", "))
		stop(1)
		return
	}

	in := inputs{}
	var err error
	if source != "" {
		if in.Source, err = readFile(source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			stop(1)
			return
		}
	}
	if target != "" {
		if in.Target, err = readFile(target); err != nil {
			fmt.Fprintln(os.Stderr, err)
			stop(1)
			return
		}
	}
	if stylesheet != "" {
		if in.Stylesheet, err = readFile(stylesheet); err != nil {
			fmt.Fprintln(os.Stderr, err)
			stop(1)
			return
		}
	}

	stop(fm.f(os.Stdout, in))
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %v", path, err)
	}
	return string(data), nil
}

// exitForDiagnostic maps a halting vetxslt.Diagnostic to the exit code §6
// reserves for its kind: 2 for a subset violation, 1 for anything else.
func exitForDiagnostic(err error) int {
	if d, ok := err.(vetxslt.Diagnostic); ok && d.Kind() == vetxslt.KindSubsetViolation {
		return 2
	}
	return 1
}
