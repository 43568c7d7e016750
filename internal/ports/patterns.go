package ports

// TermScanner reports which index terms occur in a text using multi-pattern
// matching (Aho-Corasick). One pass over the content finds every term at once,
// regardless of how many terms are indexed: O(n + m + z) where n=content
// length, m=total term length, z=number of matches.
//
// The linker uses it as a prefilter over the raw document body: a term that
// does not occur there cannot occur in the protected working text either.
type TermScanner interface {
	// Occurring returns a slice indexed like the scanner's terms; element i is
	// true when term i occurs at least once in content. Overlapping occurrences
	// count, so "AB" and "B" both report for content "AB".
	Occurring(content string) []bool
}
