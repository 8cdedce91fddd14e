package search

import (
	"strings"

	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
)

// factorBreakdown flattens a score tree into factor name → weighted
// contribution. Nodes are matched on their "weight(<name>)" description;
// repeated names are summed.
func factorBreakdown(e *result.Explanation) map[string]float64 {
	if e == nil {
		return nil
	}
	out := make(map[string]float64)
	collectFactors(*e, out)
	return out
}

func collectFactors(e result.Explanation, out map[string]float64) {
	if name, ok := factorName(e.Description); ok {
		out[name] += e.Value
		return
	}
	for _, d := range e.Details {
		collectFactors(d, out)
	}
}

func factorName(desc string) (string, bool) {
	rest, ok := strings.CutPrefix(desc, "weight(")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, ")")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// explainHits attaches the factor breakdown to every explained hit.
func explainHits(hits []result.Hit) {
	for i := range hits {
		if hits[i].Explanation != nil {
			hits[i].Factors = factorBreakdown(hits[i].Explanation)
		}
	}
}
