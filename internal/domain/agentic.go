package domain

import "context"

// QueryRewriter reformulates a query that retrieved insufficient evidence.
// conversationContext carries recent dialogue turns; missingInfo, when
// non-empty, describes what the judge found lacking.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query, conversationContext, missingInfo string) (string, error)
}

// SufficiencyAssessment is the judge's verdict on one retrieval round.
// It is produced once per iteration and never retried.
type SufficiencyAssessment struct {
	// Sufficient is the judge's boolean verdict.
	Sufficient bool
	// Coverage estimates how much of the information need is covered, in [0,1].
	Coverage float64
	// MissingInfo describes what is lacking, when the judge can tell.
	MissingInfo string
}

// SufficiencyJudge decides whether retrieved evidence adequately covers the
// query. When configured it is authoritative; without it the agentic loop
// falls back to a relevance heuristic.
type SufficiencyJudge interface {
	Assess(ctx context.Context, query string, topDocuments []Document) (SufficiencyAssessment, error)
}

// TerminalReason records why the agentic loop stopped.
type TerminalReason string

const (
	// TerminalSufficient means the evidence met the sufficiency threshold.
	TerminalSufficient TerminalReason = "sufficient"
	// TerminalMaxIterations means the loop stopped without reaching
	// sufficiency: iteration cap hit, rewriting unavailable or ineffective,
	// or a collaborator failed.
	TerminalMaxIterations TerminalReason = "max_iterations_reached"
)

// AgenticSearchResult is the final product of the agentic retrieval loop.
type AgenticSearchResult struct {
	// Documents is the last retrieved set, budget-selected.
	Documents []Document
	// Iterations is the number of retrieval rounds actually performed.
	Iterations int
	// Rewritten reports whether any query rewrite occurred.
	Rewritten bool
	// Reason is the terminal reason for stopping.
	Reason TerminalReason
	// Partial is set when the last round returned partial results
	// (a search source timed out or failed).
	Partial bool
}
