package indexer

import "sort"

// TypeSet is one logical identifier and the numeric transaction types it covers
type TypeSet struct {
	ID    string
	Types []int
}

// Registry maps logical identifiers to transaction types. One type may belong to
// several identifiers. A Registry is immutable once built.
type Registry struct {
	sets []TypeSet
}

// NewRegistry builds a registry; identifiers keep the order given
func NewRegistry(sets ...TypeSet) *Registry {
	copied := make([]TypeSet, len(sets))
	for i, s := range sets {
		copied[i] = TypeSet{ID: s.ID, Types: append([]int(nil), s.Types...)}
	}
	return &Registry{sets: copied}
}

// NewRegistryFromMap builds a registry from id -> types, ordered by id
func NewRegistryFromMap(m map[string][]int) *Registry {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sets := make([]TypeSet, 0, len(ids))
	for _, id := range ids {
		sets = append(sets, TypeSet{ID: id, Types: m[id]})
	}
	return NewRegistry(sets...)
}

// DefaultRegistry returns the identifiers of the public LTO network
func DefaultRegistry() *Registry {
	return NewRegistry(
		TypeSet{ID: "all", Types: []int{1, 4, 8, 9, 11, 12, 13, 15, 16, 17, 18, 19, 20, 21, 22, 23}},
		TypeSet{ID: "transfer", Types: []int{4}},
		TypeSet{ID: "mass_transfer", Types: []int{11}},
		TypeSet{ID: "lease", Types: []int{8, 9}},
		TypeSet{ID: "anchor", Types: []int{15, 22}},
		TypeSet{ID: "association", Types: []int{16, 17}},
		TypeSet{ID: "sponsorship", Types: []int{18, 19}},
		TypeSet{ID: "script", Types: []int{13}},
		TypeSet{ID: "data", Types: []int{12}},
		TypeSet{ID: "register", Types: []int{20}},
		TypeSet{ID: "burn", Types: []int{21}},
		TypeSet{ID: "statement", Types: []int{23}},
	)
}

func contains(types []int, t int) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// Identifiers lists every identifier
func (r *Registry) Identifiers() []string {
	ids := make([]string, len(r.sets))
	for i, s := range r.sets {
		ids[i] = s.ID
	}
	return ids
}

// IdentifiersByType lists every identifier whose type set contains txType
func (r *Registry) IdentifiersByType(txType int) []string {
	var ids []string
	for _, s := range r.sets {
		if contains(s.Types, txType) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// IdentifierByType returns the first identifier covering txType
func (r *Registry) IdentifierByType(txType int) (string, bool) {
	for _, s := range r.sets {
		if contains(s.Types, txType) {
			return s.ID, true
		}
	}
	return "", false
}

// HasIdentifier reports whether id is registered
func (r *Registry) HasIdentifier(id string) bool {
	for _, s := range r.sets {
		if s.ID == id {
			return true
		}
	}
	return false
}
