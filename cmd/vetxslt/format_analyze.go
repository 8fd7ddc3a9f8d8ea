package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vetxslt/vetxslt"
)

func init() {
	register(&formatter{
		name: "analyze",
		f:    doAnalyze,
		help: "run the full pipeline and report validity, warnings, and the proof trace",
	})
}

func doAnalyze(w *os.File, in inputs) int {
	res, err := vetxslt.Analyze(context.Background(), in.Source, in.Target, in.Stylesheet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitForDiagnostic(err)
	}

	writeProof(w, res.Proof)
	fmt.Fprintln(w)

	if res.TypeValidation != nil {
		fmt.Fprintf(w, "type preservation: %d error(s), %d warning(s)\n", len(res.TypeValidation.Errors), len(res.TypeValidation.Warnings))
		for _, e := range res.TypeValidation.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
		for _, wn := range res.TypeValidation.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", wn)
		}
	}
	if res.Validity != nil {
		fmt.Fprintf(w, "validity: %s\n", res.Validity.Explanation)
	}
	fmt.Fprintf(w, "valid: %v\n", res.Valid)

	if !res.Valid {
		return 1
	}
	return 0
}
