package domain

import "errors"

// Sentinel errors for the retrieval pipeline. Call sites wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	// ErrEmbedding indicates the embedding provider was unreachable or
	// returned malformed output.
	ErrEmbedding = errors.New("embedding provider failed")

	// ErrVectorStore indicates the dense (vector) search backend failed.
	ErrVectorStore = errors.New("vector store search failed")

	// ErrSparseIndex indicates the sparse (keyword) search backend failed.
	ErrSparseIndex = errors.New("sparse index search failed")

	// ErrScoring indicates a cross-encoder scoring call failed for a single
	// candidate. Reranking absorbs this per candidate; it never fails a batch.
	ErrScoring = errors.New("cross-encoder scoring failed")

	// ErrRewrite indicates the query rewriter collaborator failed.
	ErrRewrite = errors.New("query rewrite failed")

	// ErrJudge indicates the sufficiency judge collaborator failed.
	ErrJudge = errors.New("sufficiency judgment failed")

	// ErrRetrieval indicates both search sources failed and no candidates
	// could be produced. This is the only search failure surfaced to callers.
	ErrRetrieval = errors.New("all retrieval sources failed")

	// ErrBudgetExceeded indicates a context budget invariant was violated.
	// Selection must make this unreachable; seeing it means a bug.
	ErrBudgetExceeded = errors.New("context budget exceeded")
)
