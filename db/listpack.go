package db

// listpack is the LISTPACK encoding: an inline sequence of (field,
// value) pairs, used while the hash is small and no field has ever
// carried a TTL. A Go slice of small structs gives O(n) scan/append
// behavior without unsafe byte-layout code (see also listpackex.go).
type listpack struct {
	entries []lpEntry
}

type lpEntry struct {
	field []byte
	value []byte
}

func newListpack() *listpack {
	return &listpack{}
}

func (lp *listpack) get(field []byte) ([]byte, bool) {
	for i := range lp.entries {
		if string(lp.entries[i].field) == string(field) {
			return lp.entries[i].value, true
		}
	}
	return nil, false
}

// set replaces or appends field=value, reporting whether the field was
// newly created.
func (lp *listpack) set(field, value []byte) (created bool) {
	for i := range lp.entries {
		if string(lp.entries[i].field) == string(field) {
			lp.entries[i].value = value
			return false
		}
	}
	lp.entries = append(lp.entries, lpEntry{field: field, value: value})
	return true
}

func (lp *listpack) delete(field []byte) bool {
	for i := range lp.entries {
		if string(lp.entries[i].field) == string(field) {
			lp.entries = append(lp.entries[:i], lp.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (lp *listpack) len() int { return len(lp.entries) }

func (lp *listpack) maxFieldValueLen() int {
	max := 0
	for _, e := range lp.entries {
		if len(e.field) > max {
			max = len(e.field)
		}
		if len(e.value) > max {
			max = len(e.value)
		}
	}
	return max
}

// toListpackEx converts every entry into a no-TTL triple, preserving
// insertion order (all triples sort to the trailing "no TTL" run so order
// among themselves is not otherwise constrained).
func (lp *listpack) toListpackEx() *listpackEx {
	lpx := newListpackEx()
	for _, e := range lp.entries {
		lpx.entries = append(lpx.entries, lpxEntry{field: e.field, value: e.value, expireAt: 0})
	}
	return lpx
}

func (lp *listpack) toHashTable() *httable {
	ht := newHTTable()
	for _, e := range lp.entries {
		ht.fields[string(e.field)] = &httEntry{field: NewField(e.field), value: e.value}
	}
	return ht
}
