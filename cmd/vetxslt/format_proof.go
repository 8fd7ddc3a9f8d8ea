package main

import (
	"fmt"
	"os"

	"github.com/vetxslt/vetxslt/internal/proof"
)

// writeProof prints a proof trace one step per line, preserving the
// order it was logged in (Design Notes §9: ordering is load-bearing).
func writeProof(w *os.File, tr proof.Trace) {
	fmt.Fprintln(w, "proof:")
	for _, step := range tr {
		fmt.Fprintf(w, "  [%s] %s\n", step.Level, step.Message)
	}
}
