package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/view"
)

// NodeIndex indexes a graph's nodes for search_nodes: every string
// property value is both tokenized into the BM25 free-text engine and
// recorded verbatim for exact "field:value" lookups.
type NodeIndex struct {
	text *FulltextIndex

	mu    sync.RWMutex
	exact map[string][]string // "field:value" -> node external ids, insertion order
}

// NewNodeIndex builds an empty index.
func NewNodeIndex() *NodeIndex {
	return &NodeIndex{
		text:  NewFulltextIndex(),
		exact: make(map[string][]string),
	}
}

// IndexNode indexes one node's string-valued properties (named in
// propNames) as read through n at the view's effective time.
func (idx *NodeIndex) IndexNode(n view.Node, propNames []string) error {
	ext, err := n.ExternalID()
	if err != nil {
		return fmt.Errorf("search: index node: %w", err)
	}
	id := ext.String()

	var doc strings.Builder
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, name := range propNames {
		p, ok, err := n.Prop(name)
		if err != nil {
			return fmt.Errorf("search: index node %s prop %s: %w", id, name, err)
		}
		if !ok || p.Kind() != prop.KindStr {
			continue
		}
		value, _ := p.IntoStr()
		key := name + ":" + value
		idx.exact[key] = append(idx.exact[key], id)

		doc.WriteString(value)
		doc.WriteByte(' ')
	}
	idx.text.Index(id, doc.String())
	return nil
}

// Search runs query against the index, returning up to limit external
// ids starting after offset. A query of the exact form "field:value"
// (no spaces, exactly one colon) is an exact property match, in
// insertion order; any other query is ranked BM25 free-text search.
func (idx *NodeIndex) Search(query string, limit, offset int) []string {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	if field, value, ok := parseFieldQuery(query); ok {
		idx.mu.RLock()
		hits := append([]string{}, idx.exact[field+":"+value]...)
		idx.mu.RUnlock()
		return paginate(hits, limit, offset)
	}

	results := idx.text.Search(query, limit+offset)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return paginate(ids, limit, offset)
}

// parseFieldQuery recognizes a bare "field:value" query: no internal
// whitespace and exactly one colon separator.
func parseFieldQuery(query string) (field, value string, ok bool) {
	if strings.ContainsAny(query, " \t\n") {
		return "", "", false
	}
	idxColon := strings.IndexByte(query, ':')
	if idxColon <= 0 || idxColon == len(query)-1 {
		return "", "", false
	}
	if strings.IndexByte(query[idxColon+1:], ':') >= 0 {
		return "", "", false
	}
	return query[:idxColon], query[idxColon+1:], true
}

func paginate(ids []string, limit, offset int) []string {
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

// BuildNodeIndex indexes every node currently visible in v over
// propNames, for use by a graph's search_nodes operation.
func BuildNodeIndex(v view.View, propNames []string) (*NodeIndex, error) {
	idx := NewNodeIndex()
	for _, n := range v.Nodes() {
		if err := idx.IndexNode(n, propNames); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
