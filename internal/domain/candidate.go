package domain

// SearchSource identifies which backend produced a candidate.
type SearchSource string

const (
	SourceDense  SearchSource = "dense"
	SourceSparse SearchSource = "sparse"
)

// Candidate is a single hit from one search source. Candidates are created by
// the search ports and never mutated afterwards.
type Candidate struct {
	// DocID is the unique document identifier.
	DocID string
	// Text is the document text or snippet.
	Text string
	// Source is the backend that produced this candidate.
	Source SearchSource
	// Rank is the 1-based position within the source's result list.
	Rank int
	// Score is the source-local relevance score (cosine similarity for dense,
	// BM25 for sparse). Kept for debugging; fusion uses ranks only.
	Score float32
}

// FusedResult is one document after reciprocal rank fusion. Ranks form a
// dense 1..N sequence ordered by fused score descending.
type FusedResult struct {
	DocID string
	Text  string
	// Score is the fused RRF score.
	Score float64
	// DenseRank and SparseRank are the contributing 1-based source ranks;
	// zero means the document was absent from that list.
	DenseRank  int
	SparseRank int
	// Rank is the final 1-based position in the fused ranking.
	Rank int
}

// InBothSources reports whether the document appeared in both source lists.
func (f FusedResult) InBothSources() bool {
	return f.DenseRank > 0 && f.SparseRank > 0
}

// MinSourceRank returns the best (lowest) contributing source rank.
func (f FusedResult) MinSourceRank() int {
	switch {
	case f.DenseRank == 0:
		return f.SparseRank
	case f.SparseRank == 0:
		return f.DenseRank
	case f.DenseRank < f.SparseRank:
		return f.DenseRank
	default:
		return f.SparseRank
	}
}

// ExitReason records how a candidate left the reranking cascade.
type ExitReason string

const (
	// ExitFullModel means the cross-encoder scored the candidate.
	ExitFullModel ExitReason = "full_model"
	// ExitEarly means scoring stopped before reaching the candidate.
	ExitEarly ExitReason = "early_exit"
	// ExitPrefiltered means the lexical prefilter excluded the candidate.
	ExitPrefiltered ExitReason = "prefiltered"
)

// RerankedResult is one document after the reranking cascade.
type RerankedResult struct {
	DocID string
	Text  string
	// Score is the cross-encoder score for full-model candidates, and the
	// fused score carried through for everything else.
	Score float64
	// Reason records which stage of the cascade decided this candidate.
	Reason ExitReason
	// Fused is the fusion result this candidate came from.
	Fused FusedResult
}

// Document is the final shape handed to the surrounding agent.
type Document struct {
	ID    string
	Text  string
	Score float64
}
