package main

import (
	"fmt"
	"os"

	"github.com/vetxslt/vetxslt"
)

func init() {
	register(&formatter{
		name: "lint",
		f:    doLint,
		help: "report whether a stylesheet is within the analyzable subset",
	})
}

func doLint(w *os.File, in inputs) int {
	r, err := vetxslt.LintStylesheet(in.Stylesheet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, wn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", wn)
	}
	fmt.Fprintf(w, "valid: %v\n", r.Valid)

	if !r.Valid {
		return 2
	}
	return 0
}
