// Package sleuth analyzes the log files of a support bundle: it classifies
// each file by component, matches lines against a pattern catalog, groups
// what it finds, and links related events across files into correlation
// chains.
//
// Quick start:
//
//	a, err := sleuth.New(sleuth.WithTopN(5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, _ := a.AnalyzeDir(ctx, "bundle/", "*.log")
//	for _, ch := range r.Chains {
//	    fmt.Println(ch.Narrative)
//	}
//
// An Analyzer is safe for concurrent use. Create once, reuse across runs.
package sleuth
