package engine

import (
	"sort"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// candidate is an outcome competing for the final verdict.
type candidate struct {
	statementID string
	priority    int
	outcome     ast.Outcome
}

// aggregator keeps the current winner. Candidates arrive in descending
// priority with document order breaking ties: the first one wins, and a later
// candidate replaces it only when its outcome carries override.
type aggregator struct {
	winner *candidate
}

// offer submits c and reports whether it became the winner.
func (a *aggregator) offer(c candidate) bool {
	if a.winner == nil || c.outcome.Override {
		a.winner = &c
		return true
	}
	return false
}

// halted reports whether evaluation may stop: the winner asks to halt and no
// remaining statement could override it.
func (a *aggregator) halted(overrideRemaining bool) bool {
	return a.winner != nil && a.winner.outcome.Halt && !overrideRemaining
}

// resolveOutcome selects the outcome for a bucket: the statement's own, then
// the document default, then the builtin fallback. Builtins are needs_info
// for missing data and needs_review for errors; apply and violation fall back
// to an implicit no_change that does not compete. A TAG that fired competes
// only for the apply or violation outcome it declares; its missing and error
// buckets resolve like any other statement's.
func resolveOutcome(defaults ast.Defaults, s *ast.Statement, b ast.Bucket) (out ast.Outcome, implicit, competing bool) {
	if o := s.Outcomes.Get(b); o != nil {
		return *o, false, true
	}
	if s.Type == ast.StatementTag && (b == ast.BucketApply || b == ast.BucketViolation) {
		return ast.Outcome{Verdict: ast.VerdictNoChange}, true, false
	}
	if o := defaults.ForBucket(b); o != nil {
		return *o, false, true
	}
	switch b {
	case ast.BucketMissing:
		return ast.Outcome{Verdict: ast.VerdictNeedsInfo}, true, true
	case ast.BucketError:
		return ast.Outcome{Verdict: ast.VerdictNeedsReview}, true, true
	}
	return ast.Outcome{Verdict: ast.VerdictNoChange}, true, false
}

// deferredQueue holds candidates from failed DEFINE statements. They join
// aggregation at their own priority, ahead of statements of equal priority.
type deferredQueue struct {
	items []candidate
}

func (q *deferredQueue) push(c candidate) {
	q.items = append(q.items, c)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].priority > q.items[j].priority
	})
}

// popAtLeast removes and returns the queued candidates whose priority is at
// least p, highest first.
func (q *deferredQueue) popAtLeast(p int) []candidate {
	n := 0
	for n < len(q.items) && q.items[n].priority >= p {
		n++
	}
	out := q.items[:n]
	q.items = q.items[n:]
	return out
}
