// Package search provides the full-text search_nodes query operation:
// a BM25-ranked free-text engine over a node's indexed string property
// values, plus an exact "field:value" lookup for queries that name a
// property directly (e.g. "kind:wizard").
package search

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// BM25 parameters (standard values).
const (
	bm25K1 = 1.2  // term-frequency saturation
	bm25B  = 0.75 // document-length normalisation
)

// indexResult is one scored hit: the indexed document id (a node
// external id string) and its BM25 score.
type indexResult struct {
	ID    string
	Score float64
}

// posting records one document's term frequency in a postings list.
type posting struct {
	doc  int // index into FulltextIndex.docs
	freq int
}

// docEntry is one indexed document: the node external id it was built
// from and its token count.
type docEntry struct {
	id     string
	tokens int
}

// FulltextIndex is an in-process inverted index over node property
// text, scored with BM25. Documents are appended once per node by
// BuildNodeIndex; re-indexing a node replaces its previous entry.
type FulltextIndex struct {
	mu sync.RWMutex

	docs     []docEntry
	byID     map[string]int       // external id -> docs index
	postings map[string][]posting // term -> postings, ascending doc
	totalLen int                  // sum of docs[*].tokens
}

// NewFulltextIndex constructs an empty index.
func NewFulltextIndex() *FulltextIndex {
	return &FulltextIndex{
		byID:     make(map[string]int),
		postings: make(map[string][]posting),
	}
}

// Index adds or replaces the document for id. Empty or all-stop-word
// text leaves id unindexed.
func (f *FulltextIndex) Index(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.byID[id]; ok {
		f.dropLocked(prev)
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return
	}

	doc := len(f.docs)
	f.docs = append(f.docs, docEntry{id: id, tokens: len(tokens)})
	f.byID[id] = doc
	f.totalLen += len(tokens)

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	for term, n := range freq {
		f.postings[term] = append(f.postings[term], posting{doc: doc, freq: n})
	}
}

// dropLocked blanks a replaced document in place. Its slot stays in
// f.docs (doc indexes in postings remain stable) but scores as empty.
func (f *FulltextIndex) dropLocked(doc int) {
	old := f.docs[doc]
	f.totalLen -= old.tokens
	f.docs[doc] = docEntry{}
	delete(f.byID, old.id)
	for term, list := range f.postings {
		for i, p := range list {
			if p.doc == doc {
				f.postings[term] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(f.postings[term]) == 0 {
			delete(f.postings, term)
		}
	}
}

// Search scores every document containing a query term and returns the
// top limit hits, best first.
func (f *FulltextIndex) Search(query string, limit int) []indexResult {
	f.mu.RLock()
	defer f.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 || len(f.byID) == 0 {
		return nil
	}
	avgLen := float64(f.totalLen) / float64(len(f.byID))

	scores := make(map[int]float64)
	for _, term := range terms {
		for _, p := range f.postings[term] {
			scores[p.doc] += f.bm25Locked(term, p, avgLen)
		}
	}

	hits := make([]indexResult, 0, len(scores))
	for doc, score := range scores {
		if entry := f.docs[doc]; entry.id != "" {
			hits = append(hits, indexResult{ID: entry.id, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit >= 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// bm25Locked scores one (term, document) pair. The IDF uses the
// +1-smoothed form so terms present in most documents still score
// non-negative.
func (f *FulltextIndex) bm25Locked(term string, p posting, avgLen float64) float64 {
	df := float64(len(f.postings[term]))
	n := float64(len(f.byID))
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))

	tf := float64(p.freq)
	docLen := float64(f.docs[p.doc].tokens)
	return idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
}

// Len reports the number of currently indexed documents.
func (f *FulltextIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byID)
}

// tokenize lowercases text, splits on non-alphanumeric runes, and drops
// single-rune tokens and stop words.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// stopWords is deliberately minimal: generic function words only, so
// domain vocabulary in property values is never filtered away.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "was": true, "were": true, "with": true, "this": true,
}
