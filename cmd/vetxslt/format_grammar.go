package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/vetxslt/vetxslt"
	"github.com/vetxslt/vetxslt/internal/rtg"
	"github.com/vetxslt/vetxslt/pkg/indent"
)

func init() {
	register(&formatter{
		name: "source-grammar",
		f:    func(w *os.File, in inputs) int { return doGrammar(w, in.Source) },
		help: "build the source schema's regular tree grammar and print it",
	})
	register(&formatter{
		name: "target-grammar",
		f:    func(w *os.File, in inputs) int { return doGrammar(w, in.Target) },
		help: "build the target schema's regular tree grammar and print it",
	})
}

func doGrammar(w *os.File, schema string) int {
	g, diags, err := vetxslt.BuildGrammar(schema)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s\n", d)
	}

	writeProduction(w, g, g.Root, map[string]bool{})
	if diags.HasErrors() {
		return 1
	}
	return 0
}

// writeProduction prints name's production(s) in a braced, indented
// tree, the way goyang's tree.go format prints a yang.Entry: one
// compositor line per production, children indented two spaces beneath
// it, guarding against the grammar's cyclic definitions with a visited
// set rather than recursing forever.
func writeProduction(w io.Writer, g *rtg.Grammar, name string, seen map[string]bool) {
	if seen[name] {
		fmt.Fprintf(w, "%s (already shown above)\n", name)
		return
	}
	seen[name] = true

	prods := g.ProductionsFor(name)
	if len(prods) == 0 {
		fmt.Fprintf(w, "%s: <atomic>\n", name)
		return
	}

	for _, p := range prods {
		fmt.Fprintf(w, "%s [%s, %s] {\n", name, p.Kind, p.Cardinality) //}
		for _, attr := range attributesOf(g, name) {
			fmt.Fprintf(w, "  @%s: %s\n", attr.Name, attr.TypeRef)
		}
		iw := indent.NewWriter(w, "  ")
		for _, sym := range p.RHS {
			if sym.Atomic {
				fmt.Fprintf(iw, "%s: <atomic>\n", sym.Name)
				continue
			}
			writeProduction(iw, g, sym.Name, seen)
		}
		fmt.Fprintln(w, "}")
	}
}

func attributesOf(g *rtg.Grammar, name string) []rtg.AttributeDecl {
	decls := g.Attributes[name]
	out := make([]rtg.AttributeDecl, len(decls))
	copy(out, decls)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
