package session

// History is the ordered ledger of submitted queries, most recent first and
// unique by id.
type History struct {
	queries []Query
}

// Add prepends a query. A second add with an id already present is ignored;
// query records are immutable.
func (h *History) Add(q Query) {
	for _, existing := range h.queries {
		if existing.ID == q.ID {
			return
		}
	}
	h.queries = append([]Query{q}, h.queries...)
}

// Remove deletes the query with the given id and reports whether it existed.
// Unknown ids are a no-op, not an error.
func (h *History) Remove(id string) bool {
	for i, q := range h.queries {
		if q.ID == id {
			h.queries = append(h.queries[:i], h.queries[i+1:]...)
			return true
		}
	}
	return false
}

// Get looks up a query by id.
func (h *History) Get(id string) (Query, bool) {
	for _, q := range h.queries {
		if q.ID == id {
			return q, true
		}
	}
	return Query{}, false
}

// Queries returns a copy of the ledger, most recent first.
func (h *History) Queries() []Query {
	return append([]Query(nil), h.queries...)
}

// Len reports how many queries the ledger holds.
func (h *History) Len() int {
	return len(h.queries)
}
