package composer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// chainDocs builds documents p0..p(n-1) where p(i) extends p(i-1); when back
// is within range, p0 extends p(back), closing a cycle.
func chainDocs(n, back int) map[ast.PolicyRef]*ast.Document {
	docs := make(map[ast.PolicyRef]*ast.Document, n)
	for i := 0; i < n; i++ {
		r := ast.PolicyRef{PolicyID: fmt.Sprintf("p%d", i), Version: "1.0.0"}
		doc := &ast.Document{PolicyID: r.PolicyID, Version: r.Version, Chain: []ast.PolicyRef{r}}
		doc.Statements = []*ast.Statement{{
			ID:     fmt.Sprintf("S%d", i),
			Type:   ast.StatementTag,
			Rule:   &ast.Rule{Add: []string{r.PolicyID}},
			Origin: r,
		}}
		if i > 0 {
			doc.Extends = &ast.PolicyRef{PolicyID: fmt.Sprintf("p%d", i-1), Version: "1.0.0"}
		} else if back >= 0 && back < n {
			doc.Extends = &ast.PolicyRef{PolicyID: fmt.Sprintf("p%d", back), Version: "1.0.0"}
		}
		docs[r] = doc
	}
	return docs
}

func docsLoader(docs map[ast.PolicyRef]*ast.Document) Loader {
	return LoaderFunc(func(_ context.Context, ref ast.PolicyRef) (*ast.Document, error) {
		if d, ok := docs[ref]; ok {
			return d, nil
		}
		return nil, fmt.Errorf("not found: %s", ref)
	})
}

func TestCircularExtendsAlwaysRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a cycle of any length is a CompositionError", prop.ForAll(
		func(n, back, start int) bool {
			back %= n
			start %= n
			c := New(docsLoader(chainDocs(n, back)), WithMaxChainLength(n+1))
			_, err := c.Resolve(context.Background(), ast.PolicyRef{PolicyID: fmt.Sprintf("p%d", start), Version: "1.0.0"})
			var ce *CompositionError
			return errors.As(err, &ce) && ce.Kind == KindCircular
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 11),
		gen.IntRange(0, 11),
	))

	properties.Property("acyclic chains yield unique statement ids", prop.ForAll(
		func(n int) bool {
			c := New(docsLoader(chainDocs(n, -1)))
			eff, err := c.Resolve(context.Background(), ast.PolicyRef{PolicyID: fmt.Sprintf("p%d", n-1), Version: "1.0.0"})
			if err != nil {
				return false
			}
			seen := make(map[string]bool)
			for _, s := range eff.Statements {
				if seen[s.ID] {
					return false
				}
				seen[s.ID] = true
			}
			return len(eff.Statements) == n && len(eff.Chain) == n
		},
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
