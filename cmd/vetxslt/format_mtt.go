package main

import (
	"fmt"
	"os"

	"github.com/vetxslt/vetxslt"
)

func init() {
	register(&formatter{
		name: "mtt",
		f:    doMTT,
		help: "translate a stylesheet into a macro tree transducer and print its rules",
	})
}

func doMTT(w *os.File, in inputs) int {
	m, diags, lr, err := vetxslt.BuildMTT(in.Stylesheet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitForDiagnostic(err)
	}
	for _, warn := range lr.Warnings {
		fmt.Fprintf(os.Stderr, "%s\n", warn)
	}
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s\n", d)
	}

	fmt.Fprintf(w, "start state: %s\n", m.Q0)
	for _, r := range m.Rules {
		guard := "true"
		if r.Guard != nil {
			guard = r.Guard.String()
		}
		fmt.Fprintf(w, "%s: %s(...) [%s] when %s -> %d output node(s)\n", r.State, r.LHSPattern.Element, r.Mode, guard, len(r.Output))
	}

	if diags.HasErrors() {
		return 1
	}
	return 0
}
