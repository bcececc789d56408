// Package selector implements ordered selector chains: a list of CSS
// query candidates tried in order against a scope, with an optional
// generic keyword scan as last resort. The same idiom serves card
// discovery and every per-field lookup, each with its own candidate
// list. Chains live in a versioned registry so site-specific heuristics
// are added as new entries instead of forked pipelines.
package selector

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazyhaar/boardsnap/driver"
)

// FallbackScan is the generic last resort: scan all descendants of a
// broad tag and keep elements whose class or id text contains any
// keyword.
type FallbackScan struct {
	Tag      string
	Keywords []string
}

// Chain is one named, versioned list of query candidates.
type Chain struct {
	Name       string
	Version    int
	Candidates []string
	Fallback   *FallbackScan
}

// Resolve evaluates the chain's candidates in order against the scope
// and returns the first non-empty match set. If every candidate is empty
// it runs the fallback scan, if any. Query failures count as empty; the
// result is never an error — callers treat empty as "absent".
func Resolve(ctx context.Context, scope driver.Scope, chain Chain, log *slog.Logger) []driver.Element {
	if log == nil {
		log = slog.Default()
	}

	for _, sel := range chain.Candidates {
		els, err := scope.Query(ctx, sel)
		if err != nil {
			log.Debug("selector: candidate failed", "chain", chain.Name, "selector", sel, "error", err)
			continue
		}
		if len(els) > 0 {
			log.Debug("selector: matched", "chain", chain.Name, "selector", sel, "count", len(els))
			return els
		}
	}

	if chain.Fallback == nil {
		return nil
	}
	return scanFallback(ctx, scope, chain.Fallback, log)
}

func scanFallback(ctx context.Context, scope driver.Scope, fb *FallbackScan, log *slog.Logger) []driver.Element {
	els, err := scope.Query(ctx, fb.Tag)
	if err != nil {
		log.Debug("selector: fallback scan failed", "tag", fb.Tag, "error", err)
		return nil
	}

	var kept []driver.Element
	for _, el := range els {
		class, _ := el.Attr(ctx, "class")
		id, _ := el.Attr(ctx, "id")
		hay := strings.ToLower(class + " " + id)
		for _, kw := range fb.Keywords {
			if strings.Contains(hay, kw) {
				kept = append(kept, el)
				break
			}
		}
	}
	if len(kept) > 0 {
		log.Debug("selector: fallback scan matched", "tag", fb.Tag, "count", len(kept))
	}
	return kept
}
