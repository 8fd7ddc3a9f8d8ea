package vetxslt

import (
	"context"
	"sync"

	"github.com/vetxslt/vetxslt/internal/lint"
	"github.com/vetxslt/vetxslt/internal/mtt"
	"github.com/vetxslt/vetxslt/internal/preimage"
	"github.com/vetxslt/vetxslt/internal/proof"
	"github.com/vetxslt/vetxslt/internal/rtg"
	"github.com/vetxslt/vetxslt/internal/typecheck"
	"github.com/vetxslt/vetxslt/internal/xtree"
)

// Analyze runs the whole pipeline over the three serialized XML
// documents (§6 request surface). B_S and B_T, the source and target
// grammar builds, do not depend on each other or on the stylesheet, so
// they run as two goroutines joined by a WaitGroup rather than
// sequentially (§5: no third-party scheduler, since two fixed,
// independent, short-lived tasks do not need one).
//
// The returned error is non-nil only for a Kind1/Kind2/Kind3 defect that
// halts the pipeline before a Result can be produced; every Kind4/Kind5
// finding is data on the returned Result instead; Result.Valid is true
// only when type preservation reports no error and the validity check
// finds no counterexample. Warnings do not affect it.
func Analyze(ctx context.Context, sourceSchema, targetSchema, stylesheet string) (*Result, error) {
	res := &Result{}
	res.Proof.Log(proof.Info, "parsing source schema, target schema, and stylesheet")

	sourceTree, err := xtree.Parse([]byte(sourceSchema))
	if err != nil {
		return nil, wrapParseError("source schema", err)
	}
	targetTree, err := xtree.Parse([]byte(targetSchema))
	if err != nil {
		return nil, wrapParseError("target schema", err)
	}
	styleTree, err := xtree.Parse([]byte(stylesheet))
	if err != nil {
		return nil, wrapParseError("stylesheet", err)
	}

	lr := lint.Lint(styleTree)
	res.SubsetCheck = lr
	if !lr.Valid {
		res.Proof.Log(proof.Error, "stylesheet rejected by the subset linter: %d error(s)", len(lr.Errors))
		return res, wrapSubsetViolation(lr.Errors[0])
	}
	res.Proof.Log(proof.OK, "stylesheet accepted by the subset linter (%d warning(s))", len(lr.Warnings))

	if err := ctx.Err(); err != nil {
		return res, err
	}

	gs, gt, err := buildGrammarPair(sourceTree, targetTree)
	if err != nil {
		return res, err
	}
	res.SourceGrammar = gs
	res.TargetGrammar = gt
	res.Proof.Log(proof.OK, "source and target grammars built")

	m, diags, err := mtt.Build(styleTree)
	if err != nil {
		return res, wrapSchemaDefect("stylesheet", err)
	}
	if diags.HasErrors() {
		return res, wrapSchemaDefect("stylesheet", diags[0])
	}
	res.MTT = m
	res.Proof.Log(proof.OK, "macro tree transducer built: %d rule(s)", len(m.Rules))

	res.TypeValidation = typecheck.Validate(gs, gt, m)
	res.Proof = append(res.Proof, res.TypeValidation.Proof...)

	res.Preimage = preimage.Analyze(gt, m, gs)
	res.Proof = append(res.Proof, res.Preimage.Proof...)
	validity := res.Preimage.Validity
	res.Validity = &validity

	res.Valid = res.TypeValidation.Valid && res.Validity.Valid
	return res, nil
}

// grammarBuild is the result of one schema's B_S/B_T build, bundled so it
// can travel across a channel from its goroutine.
type grammarBuild struct {
	role    string
	grammar *rtg.Grammar
	diags   rtg.Diagnostics
	err     error
}

// buildGrammarPair runs component B over the source and target schema
// trees concurrently and waits for both (§5).
func buildGrammarPair(sourceTree, targetTree *xtree.Node) (*rtg.Grammar, *rtg.Grammar, error) {
	results := make(chan grammarBuild, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		g, diags, err := rtg.Build(sourceTree)
		results <- grammarBuild{role: "source schema", grammar: g, diags: diags, err: err}
	}()
	go func() {
		defer wg.Done()
		g, diags, err := rtg.Build(targetTree)
		results <- grammarBuild{role: "target schema", grammar: g, diags: diags, err: err}
	}()

	wg.Wait()
	close(results)

	var gs, gt *rtg.Grammar
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = wrapSchemaDefect(r.role, r.err)
		}
		switch r.role {
		case "source schema":
			gs = r.grammar
		case "target schema":
			gt = r.grammar
		}
	}
	if firstErr != nil {
		return gs, gt, firstErr
	}
	return gs, gt, nil
}

// LintStylesheet runs only the subset linter (§4.A), for callers that
// want to check a stylesheet without a pair of schemas to validate it
// against.
func LintStylesheet(stylesheet string) (*lint.Result, error) {
	tree, err := xtree.Parse([]byte(stylesheet))
	if err != nil {
		return nil, wrapParseError("stylesheet", err)
	}
	return lint.Lint(tree), nil
}

// BuildGrammar runs only component B over one schema document, for
// callers that want to inspect a regular tree grammar on its own.
func BuildGrammar(schema string) (*rtg.Grammar, rtg.Diagnostics, error) {
	tree, err := xtree.Parse([]byte(schema))
	if err != nil {
		return nil, nil, wrapParseError("schema", err)
	}
	g, diags, err := rtg.Build(tree)
	if err != nil {
		return g, diags, wrapSchemaDefect("schema", err)
	}
	return g, diags, nil
}

// BuildMTT runs only component C over one stylesheet, after confirming it
// is within the analyzable subset.
func BuildMTT(stylesheet string) (*mtt.M, mtt.Diagnostics, *lint.Result, error) {
	tree, err := xtree.Parse([]byte(stylesheet))
	if err != nil {
		return nil, nil, nil, wrapParseError("stylesheet", err)
	}
	lr := lint.Lint(tree)
	if !lr.Valid {
		return nil, nil, lr, wrapSubsetViolation(lr.Errors[0])
	}
	m, diags, err := mtt.Build(tree)
	if err != nil {
		return m, diags, lr, wrapSchemaDefect("stylesheet", err)
	}
	return m, diags, lr, nil
}
