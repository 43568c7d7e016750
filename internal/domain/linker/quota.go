package linker

// Quota counts links per document and per term. A limit of zero or less means
// unlimited. A Quota belongs to one document rewrite.
type Quota struct {
	pageLimit int
	termLimit int
	total     int
	perTerm   map[string]int
}

// NewQuota returns an empty tracker with the given limits.
func NewQuota(pageLimit, termLimit int) *Quota {
	return &Quota{
		pageLimit: pageLimit,
		termLimit: termLimit,
		perTerm:   make(map[string]int),
	}
}

// PageExhausted reports whether the document-level limit has been reached.
func (q *Quota) PageExhausted() bool {
	return q.pageLimit > 0 && q.total >= q.pageLimit
}

// TermExhausted reports whether term has used up its per-term limit.
func (q *Quota) TermExhausted(term string) bool {
	return q.termLimit > 0 && q.perTerm[term] >= q.termLimit
}

// Record counts one link for term against both limits.
func (q *Quota) Record(term string) {
	q.Add(term, 1)
}

// Add counts n links for term. The rewriter uses it to charge links that were
// already present in the document before this pass.
func (q *Quota) Add(term string, n int) {
	if n <= 0 {
		return
	}
	q.total += n
	q.perTerm[term] += n
}

// Total returns the number of links counted so far.
func (q *Quota) Total() int {
	return q.total
}

// Count returns the number of links counted for term.
func (q *Quota) Count(term string) int {
	return q.perTerm[term]
}
